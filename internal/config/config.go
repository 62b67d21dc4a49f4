// Package config loads gpad settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataPath      string
	Backend       string // "sqlite" or "file"
	AutosaveDelay time.Duration
	InitialMode   string
	LogPretty     bool
}

func Load() Config {
	_ = loadEnvFile()
	cfg := Config{
		DataPath:    envOr("GPAD_DATA_PATH", defaultDataPath()),
		Backend:     envOr("GPAD_BACKEND", "sqlite"),
		InitialMode: envOr("GPAD_MODE", "plain"),
		LogPretty:   os.Getenv("GPAD_LOG_PRETTY") == "1",
	}
	cfg.AutosaveDelay = parseDurationOr("GPAD_AUTOSAVE_DELAY", 500*time.Millisecond)
	return cfg
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gpad"
	}
	return filepath.Join(home, ".gpad")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
