package provider

import (
	"context"
	"log/slog"
	"time"
)

// RouterConfig names the preferred providers.
type RouterConfig struct {
	// Default is used when a query names no provider.
	Default string
	// Fallback is tried when the primary returns nothing.
	Fallback string
	// Timeout bounds a single provider call. Zero means no extra bound.
	Timeout time.Duration
}

// Execution reports how a federated search was served.
type Execution struct {
	// ProviderUsed is the provider whose results were returned. When every
	// provider came back empty it names the primary that was attempted.
	ProviderUsed string
	// FallbackUsed is true when the fallback provider supplied the results.
	FallbackUsed bool
	Results      []Result
}

// Router picks a provider for each query and fails over when the primary
// yields nothing. Registration order breaks ties when no configured
// preference applies.
type Router struct {
	cfg       RouterConfig
	order     []string
	providers map[string]Provider
	logger    *slog.Logger
}

func NewRouter(cfg RouterConfig, logger *slog.Logger, providers ...Provider) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		cfg:       cfg,
		providers: make(map[string]Provider, len(providers)),
		logger:    logger,
	}
	for _, p := range providers {
		if _, dup := r.providers[p.Name()]; dup {
			continue
		}
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}
	return r
}

// Search resolves a primary provider for the query, tries it, and fails
// over to a secondary when the primary yields nothing. It never returns an
// error: total failure is an empty Execution.
func (r *Router) Search(ctx context.Context, q Query, requested string) Execution {
	primary := r.resolvePrimary(requested)
	if primary == nil {
		name := requested
		if name == "" {
			name = r.cfg.Default
		}
		r.logger.Warn("no search provider available", "requested", requested)
		return Execution{ProviderUsed: name, Results: []Result{}}
	}

	if results := r.try(ctx, primary, q); len(results) > 0 {
		return Execution{ProviderUsed: primary.Name(), Results: results}
	}

	if fb := r.resolveFallback(primary.Name()); fb != nil {
		if results := r.try(ctx, fb, q); len(results) > 0 {
			r.logger.Info("search fell back",
				"primary", primary.Name(), "fallback", fb.Name())
			return Execution{ProviderUsed: fb.Name(), FallbackUsed: true, Results: results}
		}
	}

	return Execution{ProviderUsed: primary.Name(), Results: []Result{}}
}

func (r *Router) try(ctx context.Context, p Provider, q Query) []Result {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	results, err := p.Search(ctx, q)
	if err != nil {
		r.logger.Warn("provider search failed", "provider", p.Name(), "error", err)
		return nil
	}
	return results
}

// resolvePrimary picks the provider to try first: the explicitly requested
// one when registered, else the configured default when available, else the
// first available provider in registration order.
func (r *Router) resolvePrimary(requested string) Provider {
	if requested != "" {
		if p, ok := r.providers[requested]; ok {
			return p
		}
		r.logger.Warn("unknown search provider requested", "provider", requested)
	}
	if p, ok := r.providers[r.cfg.Default]; ok && p.Available() {
		return p
	}
	for _, name := range r.order {
		if p := r.providers[name]; p.Available() {
			return p
		}
	}
	return nil
}

// resolveFallback picks a secondary distinct from the primary: the
// configured fallback when it differs, else any other available provider.
func (r *Router) resolveFallback(primary string) Provider {
	if r.cfg.Fallback != "" && r.cfg.Fallback != primary {
		if p, ok := r.providers[r.cfg.Fallback]; ok && p.Available() {
			return p
		}
	}
	for _, name := range r.order {
		if name == primary {
			continue
		}
		if p := r.providers[name]; p.Available() {
			return p
		}
	}
	return nil
}

// Names lists registered providers in registration order.
func (r *Router) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// AllOptions collects capability descriptions from every provider.
func (r *Router) AllOptions(ctx context.Context) []Options {
	out := make([]Options, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name].Options(ctx))
	}
	return out
}

// AllHealth probes every provider.
func (r *Router) AllHealth(ctx context.Context) []Health {
	out := make([]Health, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name].Health(ctx))
	}
	return out
}
