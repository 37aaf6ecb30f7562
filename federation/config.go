package federation

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls the federation service. Zero values are filled in by
// defaults(), so an empty Config is usable out of the box (minus provider
// credentials).
type Config struct {
	// DatabasePath is the SQLite database file. ":memory:" is accepted.
	DatabasePath string `yaml:"database_path"`

	Providers ProvidersConfig `yaml:"providers"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Extract   ExtractConfig   `yaml:"extract"`
}

// ProvidersConfig configures the external search providers and how the
// router picks among them.
type ProvidersConfig struct {
	// Default is the provider used when a request names none.
	Default string `yaml:"default"`
	// Fallback is tried when the primary provider returns nothing.
	Fallback string `yaml:"fallback"`
	// TimeoutSeconds bounds a single provider call.
	TimeoutSeconds float64 `yaml:"timeout_seconds"`

	Tavily  TavilyConfig  `yaml:"tavily"`
	SearXNG SearXNGConfig `yaml:"searxng"`
}

type TavilyConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// IngestConfig bounds the ingestion worker.
type IngestConfig struct {
	// MaxConcurrency caps in-flight item extractions per job.
	MaxConcurrency int `yaml:"max_concurrency"`
	// RetryAttempts is the total number of extraction tries per URL.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryBackoffSeconds is the base of the linear backoff between tries.
	RetryBackoffSeconds float64 `yaml:"retry_backoff_seconds"`
	// DomainIntervalSeconds is the minimum gap between requests to one host.
	DomainIntervalSeconds float64 `yaml:"domain_interval_seconds"`
	// MinQualityScore is the threshold below which an extraction is retried.
	MinQualityScore float64 `yaml:"min_quality_score"`
	// PollIntervalSeconds is how often the runner looks for claimable jobs.
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds"`
	// LeaseSeconds is how long a claimed job stays invisible to other runners.
	LeaseSeconds float64 `yaml:"lease_seconds"`
}

// ExtractConfig configures the webpage extractor.
type ExtractConfig struct {
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	MaxBytes       int64  `yaml:"max_bytes"`
}

// LoadConfig reads a YAML config file. A missing path yields a default
// Config rather than an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.defaults()
				return &cfg, nil
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.defaults()
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = "newshub.db"
	}
	if c.Providers.Default == "" {
		c.Providers.Default = "searxng"
	}
	if c.Providers.Fallback == "" {
		c.Providers.Fallback = "tavily"
	}
	if c.Providers.TimeoutSeconds <= 0 {
		c.Providers.TimeoutSeconds = 15
	}
	if c.Providers.Tavily.BaseURL == "" {
		c.Providers.Tavily.BaseURL = "https://api.tavily.com"
	}
	if c.Ingest.MaxConcurrency <= 0 {
		c.Ingest.MaxConcurrency = 4
	}
	if c.Ingest.RetryAttempts <= 0 {
		c.Ingest.RetryAttempts = 2
	}
	if c.Ingest.RetryBackoffSeconds <= 0 {
		c.Ingest.RetryBackoffSeconds = 0.75
	}
	if c.Ingest.DomainIntervalSeconds <= 0 {
		c.Ingest.DomainIntervalSeconds = 0.5
	}
	if c.Ingest.MinQualityScore <= 0 {
		c.Ingest.MinQualityScore = 0.15
	}
	if c.Ingest.PollIntervalSeconds <= 0 {
		c.Ingest.PollIntervalSeconds = 5
	}
	if c.Ingest.LeaseSeconds <= 0 {
		c.Ingest.LeaseSeconds = 120
	}
	if c.Extract.TimeoutSeconds <= 0 {
		c.Extract.TimeoutSeconds = 20
	}
	if c.Extract.UserAgent == "" {
		c.Extract.UserAgent = "newshub-extract/1.0"
	}
	if c.Extract.MaxBytes <= 0 {
		c.Extract.MaxBytes = 10 << 20
	}
}

// ProviderTimeout returns the configured provider call timeout.
func (c *ProvidersConfig) ProviderTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}
