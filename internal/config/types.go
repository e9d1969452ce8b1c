package config

// EditorConfig tunes the embedded editor lifecycle.
type EditorConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms" koanf:"poll_interval_ms"`
	PollAttempts   int `yaml:"poll_attempts" koanf:"poll_attempts"`
	DebounceMS     int `yaml:"debounce_ms" koanf:"debounce_ms"`
}

// Config is the top-level contractedit configuration, corresponding to
// .contractedit.yml.
type Config struct {
	BackendURL         string       `yaml:"backend_url" koanf:"backend_url"`
	Port               int          `yaml:"port" koanf:"port"`
	DataDir            string       `yaml:"data_dir" koanf:"data_dir"`
	Language           string       `yaml:"language" koanf:"language"`
	SaveTimeoutSeconds int          `yaml:"save_timeout_seconds" koanf:"save_timeout_seconds"`
	AllowAllOrigins    bool         `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	Editor             EditorConfig `yaml:"editor" koanf:"editor"`
}
