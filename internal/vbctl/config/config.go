// Package config provides configuration management for the voice
// bridge CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the CLI configuration
type Config struct {
	// Server is the voice bridge API server URL
	Server string `mapstructure:"server"`
}

// defaultConfigPath returns the default config file path
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vbctl/config.yaml"
	}
	return filepath.Join(home, ".vbctl/config.yaml")
}

// Load reads the CLI configuration, preferring the given path, then
// VBCTL_CONFIG, then the default location. A missing file yields the
// defaults rather than an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VBCTL_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath()
	}

	viper.SetDefault("server", "http://localhost:8000")

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("VBCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}
