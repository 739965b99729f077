package sync

import (
	"time"

	appconfig "github.com/bolibana/boutique/internal/config"
)

// Config controls scheduling intervals, lock lifetimes and paging.
type Config struct {
	MinInterval   time.Duration
	LockTTL       time.Duration
	PageSize      int
	SiteID        int64
	FetchDetail   bool
	TriggerMaxAge time.Duration
	TriggerPaths  []string
}

func DefaultConfig() Config {
	return Config{
		MinInterval:   time.Hour,
		LockTTL:       30 * time.Minute,
		PageSize:      50,
		TriggerMaxAge: 2 * time.Hour,
		TriggerPaths:  []string{"/", "/b2b/products/", "/b2b/categories/"},
	}
}

// FromApp derives the sync configuration from the process configuration.
func FromApp(cfg appconfig.Config) Config {
	return Config{
		MinInterval: cfg.SyncFrequency,
		LockTTL:     cfg.LockTTL,
		SiteID:      cfg.B2BSiteID,
		FetchDetail: cfg.FetchDetail,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MinInterval < time.Minute {
		if c.MinInterval <= 0 {
			c.MinInterval = defaults.MinInterval
		} else {
			c.MinInterval = time.Minute
		}
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.PageSize <= 0 {
		c.PageSize = defaults.PageSize
	}
	if c.TriggerMaxAge <= 0 {
		c.TriggerMaxAge = defaults.TriggerMaxAge
	}
	if len(c.TriggerPaths) == 0 {
		c.TriggerPaths = defaults.TriggerPaths
	}
	return c
}
