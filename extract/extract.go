// Package extract turns a web page URL into structured article content:
// title, description, markdown body, publication metadata, and a 0–1 quality
// score. It is the crawling collaborator behind enriched ingestion.
//
// Content selection uses semantic landmarks (<main>, <article>) first and
// falls back to text-density analysis, so it works on pages without clean
// markup. The selected HTML is sanitized and converted to markdown.
package extract

import (
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/okanezen/newshub/urlnorm"
	"github.com/okanezen/newshub/websafe"
)

// Result is the structured outcome of one page extraction.
type Result struct {
	Title        string
	Description  string
	Content      string // markdown
	Author       string
	ImageURL     string
	PublishedAt  *time.Time
	CanonicalURL string
	URLHash      string
	Quality      float64
}

// Empty reports whether the extraction produced nothing usable.
func (r *Result) Empty() bool {
	return r == nil || (r.Title == "" && r.Content == "")
}

// BatchItem pairs an input URL with its extraction outcome.
// Result is nil when extraction failed for that URL.
type BatchItem struct {
	URL    string
	Result *Result
}

// Extractor is the contract consumed by the ingestion pipeline.
type Extractor interface {
	// Extract fetches and extracts one URL. It returns an error (or an
	// empty result) on failure; callers must treat both the same way.
	Extract(ctx context.Context, url string) (*Result, error)
	// BatchExtract processes many URLs and returns exactly one item per
	// input URL, in no particular order.
	BatchExtract(ctx context.Context, urls []string) []BatchItem
}

// Config configures the web extractor.
type Config struct {
	Timeout        time.Duration // per-request HTTP timeout. Default: 20s.
	MaxBytes       int64         // max response body size. Default: 10MB.
	UserAgent      string
	MaxConcurrency int // batch fan-out bound. Default: 4.
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: websafe.ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = websafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "newshub-extract/1.0"
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.URLValidator == nil {
		c.URLValidator = websafe.ValidateURL
	}
}

// WebExtractor implements Extractor over plain HTTP.
type WebExtractor struct {
	client    *http.Client
	config    Config
	logger    *slog.Logger
	converter *converter.Converter
	sanitizer *bluemonday.Policy
	textOnly  *bluemonday.Policy
}

// New creates a WebExtractor with SSRF protection on redirects.
func New(cfg Config, logger *slog.Logger) *WebExtractor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	validate := cfg.URLValidator
	return &WebExtractor{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
		logger: logger,
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		sanitizer: bluemonday.UGCPolicy(),
		textOnly:  bluemonday.StrictPolicy(),
	}
}

// Extract fetches url and extracts structured content from it.
func (e *WebExtractor) Extract(ctx context.Context, url string) (*Result, error) {
	if err := e.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("extract: URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: new request: %w", err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("extract: http %d", resp.StatusCode)
	}

	body, err := websafe.LimitedReadAll(resp.Body, e.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("extract: read body: %w", err)
	}

	return e.fromHTML(url, body)
}

// fromHTML extracts structured content from a fetched HTML document.
func (e *WebExtractor) fromHTML(url string, body []byte) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	meta := extractMeta(doc)

	contentHTML := selectContent(doc)
	content := ""
	if contentHTML != "" {
		content = e.toMarkdown(contentHTML, url)
	}

	canonical := meta.canonical
	if canonical == "" {
		canonical = url
	}
	canonical = urlnorm.MustNormalize(canonical)

	res := &Result{
		Title:        meta.title,
		Description:  meta.description,
		Content:      content,
		Author:       meta.author,
		ImageURL:     meta.imageURL,
		PublishedAt:  meta.publishedAt,
		CanonicalURL: canonical,
		URLHash:      URLHash(canonical),
	}
	res.Quality = Score(res.Content, res.Title, res.Description)
	return res, nil
}

// toMarkdown sanitizes an HTML fragment and converts it to markdown.
// Falls back to a whitespace-collapsed text rendering when conversion fails.
func (e *WebExtractor) toMarkdown(fragment, sourceURL string) string {
	clean := e.sanitizer.Sanitize(fragment)
	md, err := e.converter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return collapseWhitespace(e.textOnly.Sanitize(fragment))
	}
	return strings.TrimSpace(md)
}

// BatchExtract fans urls through Extract with bounded concurrency.
// The returned slice has exactly one entry per input URL.
func (e *WebExtractor) BatchExtract(ctx context.Context, urls []string) []BatchItem {
	items := make([]BatchItem, len(urls))

	sem := make(chan struct{}, e.config.MaxConcurrency)
	var wg sync.WaitGroup
	for i, u := range urls {
		items[i] = BatchItem{URL: u}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := e.Extract(ctx, u)
			if err != nil {
				e.logger.Warn("extract: batch item failed", "url", u, "error", err)
				return
			}
			items[i].Result = res
		}(i, u)
	}
	wg.Wait()
	return items
}

// URLHash returns the sha1 hex digest of a URL, used as a stable short key.
func URLHash(url string) string {
	sum := sha1.Sum([]byte(url))
	return fmt.Sprintf("%x", sum)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
