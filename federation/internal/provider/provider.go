// Package provider federates external web-search backends behind a small
// common interface and routes queries among them with failover.
package provider

import (
	"context"
	"time"
)

// Query is a provider-independent search request. Adapters translate the
// optional fields to whatever their backend understands and ignore the rest.
type Query struct {
	Text       string
	MaxResults int
	// TimeRange is one of "", "day", "week", "month", "year".
	TimeRange string
	Language  string
	// SafeSearch is 0 (off), 1 (moderate) or 2 (strict).
	SafeSearch int
	// Engines narrows meta-search backends to specific engines.
	Engines []string
}

// Result is one hit from an external provider, normalized to a common shape.
type Result struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	Score       float64        `json:"score,omitempty"`
	SourceName  string         `json:"source_name,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Provider    string         `json:"provider"`
	Engine      string         `json:"engine,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Provider is an external search backend. Search degrades to an empty
// slice on ordinary backend failure; a non-nil error is reserved for when
// the caller should not bother retrying with the same provider (the router
// treats it the same as an empty result either way, after logging).
type Provider interface {
	// Name is the stable provider identifier ("searxng", "tavily").
	Name() string
	// Available reports whether the provider is configured well enough
	// to attempt a search.
	Available() bool
	Search(ctx context.Context, q Query) ([]Result, error)
	// Options describes the provider's capabilities for UI consumption.
	Options(ctx context.Context) Options
	// Health probes the backend.
	Health(ctx context.Context) Health
}

// Options describes what a provider supports.
type Options struct {
	Provider          string   `json:"provider"`
	Available         bool     `json:"available"`
	SupportsEngines   bool     `json:"supports_engines"`
	SupportsTimeRange bool     `json:"supports_time_range"`
	SupportsLanguage  bool     `json:"supports_language"`
	Engines           []string `json:"engines,omitempty"`
	Languages         []string `json:"languages,omitempty"`
	TimeRanges        []string `json:"time_ranges,omitempty"`
}

// Health is the outcome of a provider probe.
type Health struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}
