// Package config provides application settings loaded from environment
// variables.
//
// Settings are created via Load() which handles:
// - Environment variable parsing with defaults (cleanenv struct tags)
// - Validation of values the system cannot run with, which fail fast
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/inboxtools/outlook-mcp/store"
)

// Settings holds all application configuration.
type Settings struct {
	Graph   GraphConfig
	Cache   CacheConfig
	Preview PreviewConfig
}

// GraphConfig holds upstream mail API configuration.
type GraphConfig struct {
	BaseURL     string `env:"GRAPH_BASE_URL" env-default:"https://graph.microsoft.com/v1.0"`
	AccessToken string `env:"GRAPH_ACCESS_TOKEN"`
	TimeoutSecs int    `env:"GRAPH_TIMEOUT_SECS" env-default:"30"`
}

// Timeout returns the upstream HTTP timeout.
func (g GraphConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// CacheConfig holds result cache configuration. The search and attachment
// caches are sized independently but share one TTL and sweep cadence.
type CacheConfig struct {
	TTLMs                int64 `env:"CACHE_TTL_MS" env-default:"86400000"`
	MaxSearchEntries     int   `env:"CACHE_MAX_SEARCH_ENTRIES" env-default:"100"`
	MaxAttachmentEntries int   `env:"CACHE_MAX_ATTACHMENT_ENTRIES" env-default:"100"`
	SweepIntervalMs      int64 `env:"CACHE_SWEEP_INTERVAL_MS" env-default:"300000"`
}

// TTL returns the entry time-to-live.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// SweepInterval returns the background cleanup cadence.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// SearchOptions returns the store options for the search cache.
func (c CacheConfig) SearchOptions() store.Options {
	return store.Options{
		TTL:           c.TTL(),
		MaxEntries:    c.MaxSearchEntries,
		SweepInterval: c.SweepInterval(),
	}
}

// AttachmentOptions returns the store options for the attachment cache.
func (c CacheConfig) AttachmentOptions() store.Options {
	return store.Options{
		TTL:           c.TTL(),
		MaxEntries:    c.MaxAttachmentEntries,
		SweepInterval: c.SweepInterval(),
	}
}

// PreviewConfig bounds the size of search previews.
type PreviewConfig struct {
	PerQueryLimit int `env:"PREVIEW_PER_QUERY_LIMIT" env-default:"5"`
	TotalLimit    int `env:"PREVIEW_TOTAL_LIMIT" env-default:"25"`
}

// Load reads settings from the environment. Misconfiguration the system
// cannot run with (non-positive TTL, capacity, or limits) is an error here,
// never a runtime condition.
func Load() (Settings, error) {
	var s Settings
	if err := cleanenv.ReadEnv(&s); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Cache.TTLMs <= 0 {
		return fmt.Errorf("config: CACHE_TTL_MS must be positive, got %d", s.Cache.TTLMs)
	}
	if s.Cache.MaxSearchEntries <= 0 {
		return fmt.Errorf("config: CACHE_MAX_SEARCH_ENTRIES must be positive, got %d", s.Cache.MaxSearchEntries)
	}
	if s.Cache.MaxAttachmentEntries <= 0 {
		return fmt.Errorf("config: CACHE_MAX_ATTACHMENT_ENTRIES must be positive, got %d", s.Cache.MaxAttachmentEntries)
	}
	if s.Cache.SweepIntervalMs < 0 {
		return fmt.Errorf("config: CACHE_SWEEP_INTERVAL_MS cannot be negative, got %d", s.Cache.SweepIntervalMs)
	}
	if s.Preview.PerQueryLimit <= 0 || s.Preview.TotalLimit <= 0 {
		return fmt.Errorf("config: preview limits must be positive, got per-query %d total %d",
			s.Preview.PerQueryLimit, s.Preview.TotalLimit)
	}
	if s.Graph.BaseURL == "" {
		return fmt.Errorf("config: GRAPH_BASE_URL cannot be empty")
	}
	if s.Graph.TimeoutSecs <= 0 {
		return fmt.Errorf("config: GRAPH_TIMEOUT_SECS must be positive, got %d", s.Graph.TimeoutSecs)
	}
	return nil
}
