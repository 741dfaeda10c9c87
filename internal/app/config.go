package app

import (
	"fmt"

	"github.com/weappkit/server/internal/shared/config"
)

// LoadConfig loads and validates application configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
