package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path, expands environment variables, merges
// it onto Defaults(), and validates the result — mirroring the teacher's
// pkg/config.Initialize shape (env-expand → unmarshal → mergo-merge → validate).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	expanded := ExpandEnv(raw)

	var loaded Config
	if err := yaml.Unmarshal(expanded, &loaded); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg := Defaults()
	if err := mergeOnto(cfg, &loaded); err != nil {
		return nil, fmt.Errorf("merging config onto defaults: %w", err)
	}

	if errs := ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	return cfg, nil
}
