// Package federation is the news-aggregation core: federated external
// search with failover, fusion of internal and external results, and
// governed ingestion of selected results into per-user virtual sources.
package federation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/okanezen/newshub/extract"
	"github.com/okanezen/newshub/federation/internal/fusion"
	"github.com/okanezen/newshub/federation/internal/index"
	"github.com/okanezen/newshub/federation/internal/ingest"
	"github.com/okanezen/newshub/federation/internal/provider"
	"github.com/okanezen/newshub/federation/internal/store"
	"github.com/okanezen/newshub/federation/internal/vsource"
	"github.com/okanezen/newshub/urlnorm"
)

// Schema is the service's SQLite schema, applied at open time.
const Schema = store.Schema

// Service wires the search router, result store, FTS index and ingestion
// governor together. Construct with New, then start Run in the background
// to drive ingestion jobs.
type Service struct {
	cfg      *Config
	logger   *slog.Logger
	store    *store.Store
	router   *provider.Router
	index    *index.Index
	sources  *vsource.Manager
	governor *ingest.Governor
}

type options struct {
	logger    *slog.Logger
	extractor extract.Extractor
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExtractor replaces the default HTTP extractor.
func WithExtractor(x extract.Extractor) Option {
	return func(o *options) { o.extractor = x }
}

// New builds the service on an open database that has Schema applied.
func New(db *sql.DB, cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.extractor == nil {
		o.extractor = extract.New(extract.Config{
			Timeout:        time.Duration(cfg.Extract.TimeoutSeconds * float64(time.Second)),
			UserAgent:      cfg.Extract.UserAgent,
			MaxBytes:       cfg.Extract.MaxBytes,
			MaxConcurrency: cfg.Ingest.MaxConcurrency,
		}, o.logger)
	}

	st := store.New(db)
	ix := index.New(db, o.logger)
	sources := vsource.New(st, ix, o.logger)

	router := provider.NewRouter(provider.RouterConfig{
		Default:  cfg.Providers.Default,
		Fallback: cfg.Providers.Fallback,
		Timeout:  cfg.Providers.ProviderTimeout(),
	}, o.logger,
		provider.NewSearXNG(provider.SearXNGConfig{
			BaseURL: cfg.Providers.SearXNG.BaseURL,
			APIKey:  cfg.Providers.SearXNG.APIKey,
			Logger:  o.logger,
		}),
		provider.NewTavily(provider.TavilyConfig{
			APIKey:  cfg.Providers.Tavily.APIKey,
			BaseURL: cfg.Providers.Tavily.BaseURL,
			Logger:  o.logger,
		}),
	)

	governor := ingest.New(st, sources, o.extractor, ingest.Config{
		MaxConcurrency: cfg.Ingest.MaxConcurrency,
		RetryAttempts:  cfg.Ingest.RetryAttempts,
		RetryBackoff:   time.Duration(cfg.Ingest.RetryBackoffSeconds * float64(time.Second)),
		DomainInterval: time.Duration(cfg.Ingest.DomainIntervalSeconds * float64(time.Second)),
		MinQuality:     cfg.Ingest.MinQualityScore,
		PollInterval:   time.Duration(cfg.Ingest.PollIntervalSeconds * float64(time.Second)),
		Lease:          time.Duration(cfg.Ingest.LeaseSeconds * float64(time.Second)),
	}, o.logger)

	return &Service{
		cfg:      cfg,
		logger:   o.logger,
		store:    st,
		router:   router,
		index:    ix,
		sources:  sources,
		governor: governor,
	}, nil
}

// Run drives ingestion jobs until the context ends. Jobs stranded by a
// previous process are recovered on startup.
func (s *Service) Run(ctx context.Context) error {
	err := s.governor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// FederatedSearch routes a query to an external provider with failover,
// records a session holding the results, and logs the search. A search
// with no results yields no session.
func (s *Service) FederatedSearch(ctx context.Context, userID string, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	exec := s.router.Search(ctx, provider.Query{
		Text:       req.Query,
		MaxResults: req.MaxResults,
		TimeRange:  req.TimeRange,
		Language:   req.Language,
		SafeSearch: req.SafeSearch,
		Engines:    req.Engines,
	}, req.Provider)

	resp := &SearchResponse{
		Query:        req.Query,
		ProviderUsed: exec.ProviderUsed,
		FallbackUsed: exec.FallbackUsed,
		Results:      fromProviderResults(exec.Results),
	}
	if len(exec.Results) > 0 {
		sess := &store.SearchSession{
			UserID:       userID,
			Query:        req.Query,
			ProviderUsed: exec.ProviderUsed,
			Results:      exec.Results,
		}
		if err := s.store.InsertSession(ctx, sess); err != nil {
			return nil, err
		}
		resp.SessionID = sess.ID
	}
	s.store.LogSearch(ctx, userID, req.Query, exec.ProviderUsed, len(exec.Results))
	return resp, nil
}

// AugmentedSearch fuses the user's stored items with live external results
// by reciprocal rank fusion over normalized URLs. External results get a
// session; with AutoPersist they are queued for ingestion as well.
func (s *Service) AugmentedSearch(ctx context.Context, userID string, req AugmentedSearchRequest) (*AugmentedSearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = 20
	}

	internalDocs, err := s.index.Search(ctx, userID, req.Query, limit)
	if err != nil {
		s.logger.Warn("internal search failed", "error", err)
		internalDocs = nil
	}
	internal := make([]AugmentedItem, len(internalDocs))
	for i, d := range internalDocs {
		internal[i] = AugmentedItem{
			SearchResult: SearchResult{
				Title:       d.Title,
				URL:         d.URL,
				Description: d.Description,
				SourceName:  d.SourceName,
				Score:       d.Score,
			},
			Origin: "internal",
			NewsID: d.NewsID,
		}
	}

	resp := &AugmentedSearchResponse{Query: req.Query, InternalCount: len(internal)}
	var external []AugmentedItem
	if req.IncludeExternal {
		exec := s.router.Search(ctx, provider.Query{Text: req.Query, MaxResults: limit}, req.Provider)
		resp.ProviderUsed = exec.ProviderUsed
		resp.FallbackUsed = exec.FallbackUsed
		resp.ExternalCount = len(exec.Results)
		external = make([]AugmentedItem, len(exec.Results))
		for i, r := range exec.Results {
			external[i] = AugmentedItem{SearchResult: fromProviderResult(r), Origin: "external"}
		}
		if len(exec.Results) > 0 {
			sess := &store.SearchSession{
				UserID:       userID,
				Query:        req.Query,
				ProviderUsed: exec.ProviderUsed,
				Results:      exec.Results,
			}
			if err := s.store.InsertSession(ctx, sess); err != nil {
				return nil, err
			}
			resp.SessionID = sess.ID
			if req.AutoPersist {
				receipt, err := s.QueueIngest(ctx, userID, IngestRequest{
					SessionID:   sess.ID,
					PersistMode: req.PersistMode,
				})
				if err != nil {
					s.logger.Warn("auto-persist queue failed", "session", sess.ID, "error", err)
				} else {
					resp.IngestJobID = receipt.JobID
				}
			}
		}
		s.store.LogSearch(ctx, userID, req.Query, exec.ProviderUsed, len(exec.Results))
	}

	fused := fusion.Fuse(fusion.DefaultK, func(it AugmentedItem) string {
		return urlnorm.MustNormalize(it.URL)
	}, internal, external)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	resp.Results = make([]AugmentedItem, len(fused))
	for i, f := range fused {
		item := f.Item
		item.RRFScore = f.Score
		resp.Results[i] = item
	}
	return resp, nil
}

// QueueIngest snapshots the selected session results into a new queued job
// and nudges the runner. Returns immediately; poll JobStatus for progress.
func (s *Service) QueueIngest(ctx context.Context, userID string, req IngestRequest) (*IngestReceipt, error) {
	mode := req.PersistMode
	switch mode {
	case "":
		mode = store.ModeSnippet
	case store.ModeSnippet, store.ModeEnriched:
	default:
		return nil, fmt.Errorf("%w: persist_mode %q", ErrInvalidInput, req.PersistMode)
	}

	sess, err := s.store.GetSession(ctx, userID, req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	selected := sess.Results
	if len(req.SelectedURLs) > 0 {
		wanted := make(map[string]bool, len(req.SelectedURLs))
		for _, u := range req.SelectedURLs {
			wanted[urlnorm.MustNormalize(u)] = true
		}
		selected = nil
		for _, r := range sess.Results {
			if wanted[urlnorm.MustNormalize(r.URL)] {
				selected = append(selected, r)
			}
		}
	}
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	job := &store.IngestJob{
		UserID:      userID,
		SessionID:   sess.ID,
		Provider:    sess.ProviderUsed,
		PersistMode: mode,
		Selected:    selected,
	}
	if err := s.store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	s.governor.Notify()
	s.logger.Info("ingest job queued",
		"job", job.ID, "user", userID, "items", len(selected), "mode", mode)
	return &IngestReceipt{JobID: job.ID, Status: job.Status, QueuedCount: len(selected)}, nil
}

// JobStatus returns the job's current counters, owner-scoped.
func (s *Service) JobStatus(ctx context.Context, userID, jobID string) (*IngestJob, error) {
	job, err := s.store.GetJob(ctx, userID, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromStoreJob(job), nil
}

// ProviderOptions describes every registered provider's capabilities.
func (s *Service) ProviderOptions(ctx context.Context) []ProviderOptions {
	all := s.router.AllOptions(ctx)
	out := make([]ProviderOptions, len(all))
	for i, o := range all {
		out[i] = ProviderOptions{
			Provider:          o.Provider,
			Available:         o.Available,
			SupportsEngines:   o.SupportsEngines,
			SupportsTimeRange: o.SupportsTimeRange,
			SupportsLanguage:  o.SupportsLanguage,
			Engines:           o.Engines,
			Languages:         o.Languages,
			TimeRanges:        o.TimeRanges,
		}
	}
	return out
}

// ProviderStatus probes every registered provider.
func (s *Service) ProviderStatus(ctx context.Context) []ProviderHealth {
	all := s.router.AllHealth(ctx)
	out := make([]ProviderHealth, len(all))
	for i, h := range all {
		out[i] = ProviderHealth{
			Provider:  h.Provider,
			Available: h.Available,
			Healthy:   h.Healthy,
			LatencyMS: h.LatencyMS,
			Message:   h.Message,
		}
	}
	return out
}

// Sources lists the user's virtual sources.
func (s *Service) Sources(ctx context.Context, userID string) ([]VirtualSource, error) {
	sources, err := s.store.ListSources(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]VirtualSource, len(sources))
	for i, v := range sources {
		out[i] = fromStoreSource(v)
	}
	return out, nil
}

// SearchLog lists the user's recent searches.
func (s *Service) SearchLog(ctx context.Context, userID string, limit int) ([]SearchLogEntry, error) {
	entries, err := s.store.ListSearchLog(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SearchLogEntry, len(entries))
	for i, e := range entries {
		out[i] = SearchLogEntry{
			ID:           e.ID,
			Query:        e.Query,
			ProviderUsed: e.ProviderUsed,
			ResultCount:  e.ResultCount,
			SearchedAt:   e.SearchedAt,
		}
	}
	return out, nil
}
