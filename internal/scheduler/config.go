package scheduler

import (
	"time"

	"github.com/smallbiznis/vetsub/internal/config"
)

// Config controls when the sweeper runs and how wide it fans out.
type Config struct {
	RunAt         string
	Concurrency   int
	ClinicTimeout time.Duration
	LockTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunAt:         "00:01",
		Concurrency:   4,
		ClinicTimeout: 30 * time.Second,
		LockTTL:       30 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunAt:         cfg.Scheduler.RunAt,
		Concurrency:   cfg.Scheduler.Concurrency,
		ClinicTimeout: cfg.Scheduler.ClinicTimeout,
		LockTTL:       cfg.Scheduler.LockTTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunAt == "" {
		c.RunAt = defaults.RunAt
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.ClinicTimeout <= 0 {
		c.ClinicTimeout = defaults.ClinicTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
