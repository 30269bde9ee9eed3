package main

import (
	"fmt"

	"github.com/photon-tag/tagging/internal/config"
)

// loadConfig reads the config file at configPath, validating the result.
// A missing file falls back to defaults, matching config.Load's contract.
func loadConfig() (*config.TaggingConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
