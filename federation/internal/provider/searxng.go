package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SearXNGConfig configures the SearXNG meta-search adapter.
type SearXNGConfig struct {
	// BaseURL is the SearXNG instance root, e.g. "http://localhost:8080".
	BaseURL string
	// APIKey is sent as a bearer token when the instance requires one.
	APIKey string
	Client *http.Client
	Logger *slog.Logger
}

// SearXNG queries a self-hosted SearXNG instance. Capabilities (enabled
// engines, locales) are discovered from /config once and cached.
type SearXNG struct {
	cfg    SearXNGConfig
	client *http.Client
	logger *slog.Logger

	mu   sync.Mutex
	caps *searxngCaps
}

type searxngCaps struct {
	engines []string
	locales []string
}

func NewSearXNG(cfg SearXNGConfig) *SearXNG {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &SearXNG{cfg: cfg, client: cfg.Client, logger: cfg.Logger}
}

func (s *SearXNG) Name() string { return "searxng" }

func (s *SearXNG) Available() bool { return s.cfg.BaseURL != "" }

type searxngResponse struct {
	Results []struct {
		Title         string   `json:"title"`
		URL           string   `json:"url"`
		Content       string   `json:"content"`
		Engine        string   `json:"engine"`
		Engines       []string `json:"engines"`
		Score         float64  `json:"score"`
		Category      string   `json:"category"`
		PublishedDate string   `json:"publishedDate"`
	} `json:"results"`
}

func (s *SearXNG) Search(ctx context.Context, q Query) ([]Result, error) {
	if !s.Available() {
		return nil, nil
	}
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("format", "json")
	params.Set("safesearch", strconv.Itoa(q.SafeSearch))
	if q.TimeRange != "" {
		params.Set("time_range", q.TimeRange)
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if len(q.Engines) > 0 {
		params.Set("engines", strings.Join(q.Engines, ","))
	}

	var body searxngResponse
	if err := s.getJSON(ctx, "/search?"+params.Encode(), &body); err != nil {
		s.logger.Warn("searxng search failed", "error", err)
		return nil, nil
	}

	limit := q.MaxResults
	if limit <= 0 {
		limit = 10
	}
	results := make([]Result, 0, limit)
	for _, r := range body.Results {
		if r.URL == "" {
			continue
		}
		res := Result{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Content,
			Score:       r.Score,
			SourceName:  hostOf(r.URL),
			Provider:    "searxng",
			Engine:      r.Engine,
		}
		if len(r.Engines) > 0 {
			res.Metadata = map[string]any{"engines": r.Engines, "category": r.Category}
		}
		if t := parseSearxngDate(r.PublishedDate); t != nil {
			res.PublishedAt = t
		}
		results = append(results, res)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (s *SearXNG) Options(ctx context.Context) Options {
	opts := Options{
		Provider:          "searxng",
		Available:         s.Available(),
		SupportsEngines:   true,
		SupportsTimeRange: true,
		SupportsLanguage:  true,
		TimeRanges:        []string{"day", "week", "month", "year"},
	}
	if caps := s.capabilities(ctx); caps != nil {
		opts.Engines = caps.engines
		opts.Languages = caps.locales
	}
	return opts
}

func (s *SearXNG) Health(ctx context.Context) Health {
	h := Health{Provider: "searxng", Available: s.Available()}
	if !h.Available {
		h.Message = "no base URL configured"
		return h
	}
	start := time.Now()
	var body searxngResponse
	err := s.getJSON(ctx, "/search?"+url.Values{"q": {"ping"}, "format": {"json"}}.Encode(), &body)
	h.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		h.Message = err.Error()
		return h
	}
	h.Healthy = true
	return h
}

// capabilities fetches /config on first use. A failed probe is retried on
// the next call rather than cached.
func (s *SearXNG) capabilities(ctx context.Context) *searxngCaps {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caps != nil {
		return s.caps
	}
	if !s.Available() {
		return nil
	}
	var body struct {
		Engines []struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
		} `json:"engines"`
		Locales map[string]string `json:"locales"`
	}
	if err := s.getJSON(ctx, "/config", &body); err != nil {
		s.logger.Debug("searxng config probe failed", "error", err)
		return nil
	}
	caps := &searxngCaps{}
	for _, e := range body.Engines {
		if e.Enabled {
			caps.engines = append(caps.engines, e.Name)
		}
	}
	for locale := range body.Locales {
		caps.locales = append(caps.locales, locale)
	}
	s.caps = caps
	return caps
}

func (s *SearXNG) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("searxng: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

var searxngDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseSearxngDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range searxngDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
