package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .contractedit.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to contractedit! Let's configure the editing service.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Dealership backend URL.
	backendPrompt := promptui.Prompt{
		Label:   "Dealership backend URL",
		Default: cfg.BackendURL,
		Validate: func(s string) error {
			u, err := url.Parse(s)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("must be an absolute http(s) URL")
			}
			return nil
		},
	}
	backendURL, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend URL prompt: %w", err)
	}
	cfg.BackendURL = backendURL

	// 2. Listen port.
	portPrompt := promptui.Prompt{
		Label:   "Port for the editing API",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("must be a port number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port prompt: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 3. Default document language.
	langPrompt := promptui.Select{
		Label: "Default contract language",
		Items: []string{"en", "vi", "fr", "de", "es"},
	}
	_, lang, err := langPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("language selection: %w", err)
	}
	cfg.Language = lang

	// 4. Save timeout.
	timeoutPrompt := promptui.Prompt{
		Label:   "Save timeout in seconds",
		Default: strconv.Itoa(cfg.SaveTimeoutSeconds),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive number of seconds")
			}
			return nil
		},
	}
	timeoutStr, err := timeoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("save timeout prompt: %w", err)
	}
	cfg.SaveTimeoutSeconds, _ = strconv.Atoi(timeoutStr)

	if err := cfg.Save(".contractedit.yml"); err != nil {
		return nil, err
	}

	fmt.Println()
	fmt.Println("Configuration written to .contractedit.yml")
	return cfg, nil
}
