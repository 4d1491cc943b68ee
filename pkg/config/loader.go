package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    BaseURL  string `env:"STOREFRONT_API_BASE_URL" envDefault:"http://localhost:8000/api/v1"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file leave the corresponding fields untouched. Fields are matched by their
// `yaml` tags.
func LoadFile(path string, cfg any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadWithFile parses the environment (defaults included) and then, when path
// is non-empty, overlays the YAML file. Values in the file win over the
// environment.
func LoadWithFile(cfg any, path string) error {
	if err := Load(cfg); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return LoadFile(path, cfg)
}
