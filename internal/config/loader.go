package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the YAML configuration file at path, applies
// operating defaults, overlays secrets from the environment, and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := decoder.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single YAML document")
	}

	cfg.Defaults()
	cfg.applyEnvOverlay()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
