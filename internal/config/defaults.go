package config

// DefaultConfig returns the configuration used when no file or overrides
// are present.
func DefaultConfig() *Config {
	return &Config{
		BackendURL:         "http://localhost:3000",
		Port:               8090,
		DataDir:            ".contractedit",
		Language:           "en",
		SaveTimeoutSeconds: 30,
		Editor: EditorConfig{
			PollIntervalMS: 150,
			PollAttempts:   15,
			DebounceMS:     300,
		},
	}
}
