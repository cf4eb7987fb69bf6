// Package config sources client configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds runtime configuration for the client.
type Config struct {
	// APIBaseURL is the ReceiptVault backend base URL.
	APIBaseURL string
	// StatePath is the local session database file.
	StatePath string
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL: fallback(os.Getenv("RECEIPTVAULT_API_URL"), "http://localhost:8000"),
		StatePath:  strings.TrimSpace(os.Getenv("RECEIPTVAULT_STATE_PATH")),
	}

	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		cfg.StatePath = filepath.Join(home, ".receiptvault", "session.db")
	}

	return cfg, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
