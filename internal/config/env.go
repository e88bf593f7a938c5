package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Load parses the whole configuration from the environment. Heartbeat
// settings are validated here because a zero probe interval would spin
// and a zero timeout would evict everyone on the first tick.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Heartbeat.Interval <= 0 {
		return nil, fmt.Errorf("HB_INTERVAL must be a positive duration, got %s", cfg.Heartbeat.Interval)
	}
	if cfg.Heartbeat.ClientTimeout <= 0 {
		return nil, fmt.Errorf("CLIENT_TIMEOUT must be a positive duration, got %s", cfg.Heartbeat.ClientTimeout)
	}
	return cfg, nil
}
