package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".tgsitter"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// envPrefix namespaces environment overrides (TGSITTER_PORT, ...).
	envPrefix = "TGSITTER"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("TGSITTER_CONFIG")); explicit != "" {
		return ExpandHome(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// ExpandHome resolves a leading "~" against the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err == nil {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	// Legacy key kept for drop-in compatibility with GEMINI_API_KEY setups.
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}

	if err := cfg.normalizePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration file, creating the config directory.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SessionDir, err = ExpandHome(c.Paths.SessionDir); err != nil {
		return fmt.Errorf("resolve session dir: %w", err)
	}
	if c.Paths.DBPath, err = ExpandHome(c.Paths.DBPath); err != nil {
		return fmt.Errorf("resolve db path: %w", err)
	}
	return nil
}
