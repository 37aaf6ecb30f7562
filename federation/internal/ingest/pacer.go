package ingest

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacer enforces a minimum interval between requests to the same host.
// Each host gets its own limiter, created lazily, so unrelated hosts never
// delay each other.
type pacer struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// wait blocks until a request to the URL's host is allowed. URLs without a
// parseable host pass through unthrottled.
func (p *pacer) wait(ctx context.Context, rawURL string) error {
	if p.interval <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(u.Host)

	p.mu.Lock()
	lim, ok := p.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[host] = lim
	}
	p.mu.Unlock()

	return lim.Wait(ctx)
}
