package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// TavilyConfig configures the Tavily API adapter.
type TavilyConfig struct {
	APIKey string
	// BaseURL defaults to the public API endpoint.
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// Tavily queries the Tavily web-search API. It is available only when an
// API key is configured.
type Tavily struct {
	cfg    TavilyConfig
	client *http.Client
	logger *slog.Logger
}

func NewTavily(cfg TavilyConfig) *Tavily {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Tavily{cfg: cfg, client: cfg.Client, logger: cfg.Logger}
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Available() bool { return t.cfg.APIKey != "" }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
	TimeRange   string `json:"time_range,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, q Query) ([]Result, error) {
	if !t.Available() {
		return nil, nil
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = 10
	}
	body, err := t.post(ctx, tavilyRequest{
		APIKey:      t.cfg.APIKey,
		Query:       q.Text,
		MaxResults:  limit,
		SearchDepth: "basic",
		TimeRange:   q.TimeRange,
	})
	if err != nil {
		t.logger.Warn("tavily search failed", "error", err)
		return nil, nil
	}

	results := make([]Result, 0, len(body.Results))
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
			Provider:    "tavily",
		}
		if ts := parseSearxngDate(r.PublishedDate); ts != nil {
			res.PublishedAt = ts
		}
		results = append(results, res)
	}
	return results, nil
}

func (t *Tavily) Options(ctx context.Context) Options {
	return Options{
		Provider:          "tavily",
		Available:         t.Available(),
		SupportsTimeRange: true,
		TimeRanges:        []string{"day", "week", "month", "year"},
	}
}

func (t *Tavily) Health(ctx context.Context) Health {
	h := Health{Provider: "tavily", Available: t.Available()}
	if !h.Available {
		h.Message = "no API key configured"
		return h
	}
	start := time.Now()
	_, err := t.post(ctx, tavilyRequest{
		APIKey: t.cfg.APIKey, Query: "ping", MaxResults: 1, SearchDepth: "basic",
	})
	h.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		h.Message = err.Error()
		return h
	}
	h.Healthy = true
	return h
}

func (t *Tavily) post(ctx context.Context, reqBody tavilyRequest) (*tavilyResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.cfg.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: status %d", resp.StatusCode)
	}
	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
