package shield

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds request rates per client. Zero values get
// defaults.
type RateLimitConfig struct {
	// RPS is the sustained per-client request rate.
	RPS float64
	// Burst is the short-term allowance above the sustained rate.
	Burst int
	// IdleTTL is how long an idle client's limiter is kept before eviction.
	IdleTTL time.Duration
}

func (c *RateLimitConfig) defaults() {
	if c.RPS <= 0 {
		c.RPS = 10
	}
	if c.Burst <= 0 {
		c.Burst = 30
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
}

// RateLimiter throttles requests per client. The client key is the
// X-User-ID header when present, else the remote IP, so authenticated
// users are limited individually even behind a shared NAT.
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg.defaults()
	return &RateLimiter{cfg: cfg, clients: make(map[string]*client)}
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		// Piggyback eviction of idle clients on new-client creation, so
		// the map cannot grow without bound.
		for k, old := range rl.clients {
			if now.Sub(old.lastSeen) > rl.cfg.IdleTTL {
				delete(rl.clients, k)
			}
		}
		c = &client{lim: rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.lim.Allow()
}

func clientKey(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return "u:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
