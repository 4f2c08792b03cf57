// Package config loads the YAML application configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds the backing store DSN. Postgres and SQLite DSNs are
// both accepted; the dialect is detected from the DSN shape.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LogConfig holds logging settings. When File is set, output rotates via
// lumberjack.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// Load reads the configuration file at path, applies defaults, and applies
// environment overrides (PROXYMINT_ADDR, PROXYMINT_DSN). A missing file is
// not an error as long as a DSN is available from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8317"},
		Log:    LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
	}

	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if addr := strings.TrimSpace(os.Getenv("PROXYMINT_ADDR")); addr != "" {
		cfg.Server.Addr = addr
	}
	if dsn := strings.TrimSpace(os.Getenv("PROXYMINT_DSN")); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: no database dsn in %s or PROXYMINT_DSN", path)
	}
	return cfg, nil
}
