package shield

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			buf := make([]byte, 4096)
			for {
				if _, err := r.Body.Read(buf); err != nil {
					if err.Error() == "http: request body too large" {
						http.Error(w, "too large", http.StatusRequestEntityTooLarge)
						return
					}
					break
				}
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMaxJSONBody(t *testing.T) {
	h := MaxJSONBody(64)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"q":"ok"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("small body status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	big := strings.NewReader(`{"q":"` + strings.Repeat("x", 200) + `"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", big))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status = %d, want 413", rec.Code)
	}
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RPS: 1, Burst: 2})
	h := rl.Middleware(okHandler())

	do := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", userID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("u1") != http.StatusOK || do("u1") != http.StatusOK {
		t.Fatal("burst requests rejected")
	}
	if do("u1") != http.StatusTooManyRequests {
		t.Fatal("third request should be throttled")
	}
	// Another client is unaffected.
	if do("u2") != http.StatusOK {
		t.Fatal("unrelated client throttled")
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Millisecond})
	if !rl.allow("u:a") {
		t.Fatal("first request rejected")
	}
	time.Sleep(5 * time.Millisecond)
	// A new client triggers eviction of the idle one.
	rl.allow("u:b")
	rl.mu.Lock()
	_, stillThere := rl.clients["u:a"]
	rl.mu.Unlock()
	if stillThere {
		t.Fatal("idle client not evicted")
	}
}
