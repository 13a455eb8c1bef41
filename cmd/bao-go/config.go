package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration of the CLI. Flags override it.
type fileConfig struct {
	Library  string `yaml:"library"`
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
	DB       string `yaml:"db"`
	Mock     bool   `yaml:"mock"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bao-go", "config.yaml")
}

// loadConfig reads path. A missing file is an error only when the path was
// given explicitly.
func loadConfig(path string, explicit bool) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
