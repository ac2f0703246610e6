// Package config loads the client configuration from the user's config
// directory, with environment variable overrides for scripting.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is everything the client reads at startup.
type Config struct {
	// BaseURL is the backend root, e.g. https://agentx.example.com.
	BaseURL string `toml:"base_url"`
	// Model overrides the persisted model selection when set.
	Model string `toml:"model"`
	// Email and Password log in at startup when both are set.
	Email    string `toml:"email"`
	Password string `toml:"password"`
	// LogFile receives structured logs; stdout belongs to the TUI.
	LogFile string `toml:"log_file"`
}

func Default() Config {
	return Config{
		BaseURL: "http://localhost:8000",
	}
}

// Path returns the config file location, creating the directory.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	dir := filepath.Join(configDir, "agentx")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, falling back to defaults when it does
// not exist, then applies environment overrides.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	return loadFrom(path)
}

func loadFrom(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if v := os.Getenv("AGENTX_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("AGENTX_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AGENTX_EMAIL"); v != "" {
		cfg.Email = v
	}
	if v := os.Getenv("AGENTX_PASSWORD"); v != "" {
		cfg.Password = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", c.BaseURL)
	}
	return nil
}
