// Package ingest drives ingestion jobs: it claims queued jobs from the
// store, extracts and persists their selected results under bounded
// concurrency, and accounts every item's outcome on the job record.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/okanezen/newshub/extract"
	"github.com/okanezen/newshub/federation/internal/provider"
	"github.com/okanezen/newshub/federation/internal/store"
	"github.com/okanezen/newshub/federation/internal/vsource"
	"github.com/okanezen/newshub/urlnorm"
)

// Config bounds job execution. Zero values get defaults.
type Config struct {
	// MaxConcurrency caps in-flight extractions per job.
	MaxConcurrency int
	// RetryAttempts is the total number of extraction tries per URL.
	RetryAttempts int
	// RetryBackoff is the base of the linear backoff: attempt i sleeps i*backoff.
	RetryBackoff time.Duration
	// DomainInterval is the minimum gap between requests to one host.
	DomainInterval time.Duration
	// MinQuality is the score below which an extraction is retried.
	MinQuality float64
	// PollInterval is how often Run looks for claimable jobs between nudges.
	PollInterval time.Duration
	// Lease is how long a claimed job stays invisible to other runners.
	Lease time.Duration
}

func (c *Config) defaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 2
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 750 * time.Millisecond
	}
	if c.DomainInterval < 0 {
		c.DomainInterval = 0
	} else if c.DomainInterval == 0 {
		c.DomainInterval = 500 * time.Millisecond
	}
	if c.MinQuality <= 0 {
		c.MinQuality = 0.15
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
}

// Governor owns job execution. Queueing a job is an insert plus a nudge;
// the Run loop claims and drives jobs one at a time, so one process never
// drives two jobs concurrently and the per-job counters have one writer.
type Governor struct {
	store     *store.Store
	sources   *vsource.Manager
	extractor extract.Extractor
	cfg       Config
	logger    *slog.Logger
	pacer     *pacer
	wake      chan struct{}
}

func New(s *store.Store, sources *vsource.Manager, extractor extract.Extractor, cfg Config, logger *slog.Logger) *Governor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		store:     s,
		sources:   sources,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		pacer:     newPacer(cfg.DomainInterval),
		wake:      make(chan struct{}, 1),
	}
}

// Notify nudges the Run loop to look for work now instead of waiting for
// the next poll tick. Never blocks.
func (g *Governor) Notify() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Run claims and drives jobs until the context ends. Jobs left queued or
// running with an expired lease by a previous process are picked up too,
// so a restart resumes stranded work.
func (g *Governor) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	g.DrainPending(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.wake:
		case <-ticker.C:
		}
		g.DrainPending(ctx)
	}
}

// DrainPending claims and drives claimable jobs until none remain.
func (g *Governor) DrainPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := g.store.ClaimNextJob(ctx, g.cfg.Lease)
		if err != nil {
			g.logger.Error("claim job failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		g.drive(ctx, job)
	}
}

type outcome struct {
	stored     int
	failed     int
	duplicates int
	retries    int
	quality    float64
	hasQuality bool
	failedURL  string
}

// drive runs one job to a terminal status. Item failures never abort the
// job; only a failure of the driving loop itself marks the job failed.
func (g *Governor) drive(ctx context.Context, job *store.IngestJob) {
	logger := g.logger.With("job", job.ID, "user", job.UserID, "mode", job.PersistMode)
	logger.Info("driving ingest job", "items", len(job.Selected))

	var p store.JobProgress
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest driver panicked", "panic", r)
			g.finish(ctx, job.ID, store.StatusFailed, fmt.Sprintf("driver failure: %v", r), p)
		}
	}()

	items := job.Selected
	if len(items) == 0 {
		g.finish(ctx, job.ID, store.StatusCompleted, "", p)
		return
	}

	// One grouped extractor call for multi-item enriched jobs; everything
	// else goes through the per-item retry routine.
	var batch map[string]*extract.Result
	if job.PersistMode == store.ModeEnriched && len(items) > 1 {
		batch = g.batchExtract(ctx, items)
	}

	outcomes := make(chan outcome)
	sem := make(chan struct{}, g.cfg.MaxConcurrency)
	for _, item := range items {
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- g.processItem(ctx, job, item, batch)
		}()
	}

	// Sole writer of the job counters: workers report outcomes, this loop
	// folds them in and snapshots the whole set after every item.
	var qualitySum float64
	var qualityN int
	for range items {
		o := <-outcomes
		p.Processed++
		p.Stored += o.stored
		p.Failed += o.failed
		p.Duplicates += o.duplicates
		p.Retries += o.retries
		if o.hasQuality {
			qualitySum += o.quality
			qualityN++
			p.AverageQuality = round3(qualitySum / float64(qualityN))
		}
		if o.failedURL != "" && len(p.FailedURLs) < store.MaxFailedURLs {
			p.FailedURLs = append(p.FailedURLs, o.failedURL)
		}
		if err := g.store.UpdateJobProgress(ctx, job.ID, p); err != nil {
			logger.Warn("progress write failed", "error", err)
		}
	}

	g.finish(ctx, job.ID, store.StatusCompleted, "", p)
	logger.Info("ingest job done",
		"stored", p.Stored, "failed", p.Failed, "duplicates", p.Duplicates,
		"retries", p.Retries, "avg_quality", p.AverageQuality)
}

func (g *Governor) finish(ctx context.Context, id, status, errMsg string, p store.JobProgress) {
	if err := g.store.FinishJob(ctx, id, status, errMsg, p); err != nil {
		g.logger.Error("finish job failed", "job", id, "status", status, "error", err)
	}
}

// batchExtract runs the grouped extraction for an enriched multi-item job
// and maps results by the item's original URL. Failed URLs map to nil.
func (g *Governor) batchExtract(ctx context.Context, items []provider.Result) map[string]*extract.Result {
	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.URL
	}
	out := make(map[string]*extract.Result, len(urls))
	for _, b := range g.extractor.BatchExtract(ctx, urls) {
		out[b.URL] = b.Result
	}
	return out
}

// processItem runs the single-item routine: extraction (with retry and
// quality gate in enriched mode, or a batch lookup when the grouped call
// already ran), merge, persist. Every return is exactly one outcome.
func (g *Governor) processItem(ctx context.Context, job *store.IngestJob, item provider.Result, batch map[string]*extract.Result) outcome {
	var o outcome
	var enriched *extract.Result

	if job.PersistMode == store.ModeEnriched {
		if batch != nil {
			res, ok := batch[item.URL]
			if !ok || res == nil {
				o.failed = 1
				o.failedURL = item.URL
				return o
			}
			enriched = res
		} else {
			var retries int
			enriched, retries = g.extractWithRetry(ctx, item.URL)
			o.retries = retries
		}
	}

	news := buildItem(job, item, enriched)
	if enriched != nil {
		o.quality = enriched.Quality
		o.hasQuality = true
	}

	result, err := g.sources.Ingest(ctx, job.UserID, job.Provider, []*store.NewsItem{news})
	if err != nil {
		g.logger.Warn("persist failed", "job", job.ID, "url", item.URL, "error", err)
		o.failed = 1
		o.failedURL = item.URL
		return o
	}
	o.stored = result.Stored
	o.duplicates = result.Duplicates
	return o
}

// extractWithRetry tries the extractor up to RetryAttempts times, pacing
// each try by host and accepting the first result at or above MinQuality.
// When every try falls short it returns the last result anyway; the
// quality gate bounds retrying, it does not discard content.
func (g *Governor) extractWithRetry(ctx context.Context, rawURL string) (*extract.Result, int) {
	var last *extract.Result
	retries := 0
	for attempt := 1; attempt <= g.cfg.RetryAttempts; attempt++ {
		if err := g.pacer.wait(ctx, rawURL); err != nil {
			return last, retries
		}
		res, err := g.extractor.Extract(ctx, rawURL)
		if err != nil {
			g.logger.Debug("extraction attempt failed",
				"url", rawURL, "attempt", attempt, "error", err)
		} else if res != nil {
			last = res
			if res.Quality >= g.cfg.MinQuality {
				return res, retries
			}
		}
		if attempt < g.cfg.RetryAttempts {
			retries++
			if err := sleepCtx(ctx, time.Duration(attempt)*g.cfg.RetryBackoff); err != nil {
				return last, retries
			}
		}
	}
	return last, retries
}

// buildItem merges enriched extraction fields over the search snippet.
// Enriched fields win only when non-empty.
func buildItem(job *store.IngestJob, item provider.Result, enriched *extract.Result) *store.NewsItem {
	news := &store.NewsItem{
		UserID:      job.UserID,
		Title:       item.Title,
		URL:         urlnorm.MustNormalize(item.URL),
		Description: item.Description,
		Content:     item.Content,
		SourceName:  item.SourceName,
		Provider:    item.Provider,
		Engine:      item.Engine,
		RawScore:    item.Score,
		Metadata:    item.Metadata,
	}
	news.URLHash = extract.URLHash(news.URL)
	if item.PublishedAt != nil {
		ms := item.PublishedAt.UnixMilli()
		news.PublishedAt = &ms
	}
	if enriched == nil {
		return news
	}
	if enriched.Title != "" {
		news.Title = enriched.Title
	}
	if enriched.Description != "" {
		news.Description = enriched.Description
	}
	if enriched.Content != "" {
		news.Content = enriched.Content
	}
	if enriched.Author != "" {
		news.Author = enriched.Author
	}
	if enriched.ImageURL != "" {
		news.ImageURL = enriched.ImageURL
	}
	if enriched.PublishedAt != nil {
		ms := enriched.PublishedAt.UnixMilli()
		news.PublishedAt = &ms
	}
	if enriched.CanonicalURL != "" {
		news.URL = enriched.CanonicalURL
	}
	if enriched.URLHash != "" {
		news.URLHash = enriched.URLHash
	}
	news.Quality = enriched.Quality
	return news
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
