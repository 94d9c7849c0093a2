// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/progress"
)

type Config struct {
	App struct {
		Port int    `envconfig:"PORT" default:"8080"`
		Env  string `envconfig:"APP_ENV" default:"development"`
	}

	DB struct {
		Path string `envconfig:"DB_PATH" default:"./data/smon.db"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	}

	QuarterLock struct {
		Enabled   bool `envconfig:"QUARTER_LOCK_ENABLED" default:"false"`
		GraceDays int  `envconfig:"QUARTER_LOCK_GRACE_DAYS" default:"14"`
	}

	Evidence struct {
		RequiredAfterMonths int `envconfig:"EVIDENCE_REQUIRED_AFTER_MONTHS" default:"2"`
	}

	Seed struct {
		// File is an optional JSON plan definition loaded at startup.
		File string `envconfig:"SEED_FILE" default:""`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) LockConfig() fiscal.LockConfig {
	return fiscal.LockConfig{
		Enabled:   c.QuarterLock.Enabled,
		GraceDays: c.QuarterLock.GraceDays,
	}
}

func (c *Config) EvidenceConfig() progress.EvidenceConfig {
	return progress.EvidenceConfig{
		RequiredAfterMonths: c.Evidence.RequiredAfterMonths,
	}
}
