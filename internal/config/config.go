// Package config loads and saves batchmender's process-wide configuration:
// programmatic defaults, an optional JSON file, then environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".batchmender"
	DefaultConfigFile = "config.json"
	EnvPrefix         = "BATCHMENDER"
)

// Load reads the config file (if present) layered under defaults and
// environment overrides, and returns a populated Config. configPath
// overrides the default location (~/.batchmender/config.json).
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config file yet; defaults plus env vars still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// setDefaults populates viper with the built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("runtime.base_url", "")
	v.SetDefault("runtime.api_key", "")

	v.SetDefault("scheduler.interval_seconds", 60)
	v.SetDefault("scheduler.enabled", false)

	v.SetDefault("remediate.initial_delay_seconds", 10)
	v.SetDefault("remediate.poll_interval_seconds", 10)
	v.SetDefault("remediate.max_interval_seconds", 60)
	v.SetDefault("remediate.backoff_factor", 2.0)
	v.SetDefault("remediate.max_duration_seconds", 1800)

	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 6090)
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
