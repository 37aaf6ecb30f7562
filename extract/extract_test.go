package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// noopValidator allows all URLs (httptest servers listen on loopback, which
// the real validator rejects).
func noopValidator(_ string) error { return nil }

const articlePage = `<!DOCTYPE html>
<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="Go 1.25 Released">
<meta name="description" content="The Go team has released Go 1.25.">
<meta name="author" content="The Go Team">
<meta property="og:image" content="https://example.com/go.png">
<meta property="article:published_time" content="2026-02-10T09:00:00Z">
<link rel="canonical" href="HTTPS://Example.com/blog/go1.25/?utm_source=feed">
</head><body>
<nav><a href="/">Home</a> <a href="/blog">Blog</a></nav>
<article>
<h1>Go 1.25 Released</h1>
<p>` + "The latest Go release brings improvements across the toolchain and runtime. " +
	"This paragraph is deliberately long enough to count as real article content " +
	"for the density-based extractor, which ignores short fragments." + `</p>
<p>A second paragraph keeps the structure multi-line and adds more body text
so the quality score lands in the top content band.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func testExtractor() *WebExtractor {
	return New(Config{URLValidator: noopValidator}, nil)
}

func TestExtract_Article(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	res, err := testExtractor().Extract(context.Background(), srv.URL+"/blog/go1.25")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if res.Title != "Go 1.25 Released" {
		t.Errorf("title: got %q", res.Title)
	}
	if res.Description != "The Go team has released Go 1.25." {
		t.Errorf("description: got %q", res.Description)
	}
	if res.Author != "The Go Team" {
		t.Errorf("author: got %q", res.Author)
	}
	if res.ImageURL != "https://example.com/go.png" {
		t.Errorf("image: got %q", res.ImageURL)
	}
	if res.PublishedAt == nil || res.PublishedAt.Year() != 2026 {
		t.Errorf("published_at: got %v", res.PublishedAt)
	}
	// Canonical link is normalized: lowercased host, utm param stripped,
	// trailing slash removed.
	if res.CanonicalURL != "https://example.com/blog/go1.25" {
		t.Errorf("canonical: got %q", res.CanonicalURL)
	}
	if res.URLHash != URLHash(res.CanonicalURL) {
		t.Errorf("url hash mismatch")
	}
	if !strings.Contains(res.Content, "toolchain") {
		t.Errorf("content missing article text: %q", res.Content)
	}
	if strings.Contains(res.Content, "Copyright") {
		t.Errorf("content contains footer boilerplate: %q", res.Content)
	}
	if res.Quality < 0.8 {
		t.Errorf("quality: got %v, want >= 0.8", res.Quality)
	}
}

func TestExtract_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := testExtractor().Extract(context.Background(), srv.URL); err == nil {
		t.Error("expected error on 403")
	}
}

func TestExtract_BlockedURL(t *testing.T) {
	// WHAT: The default validator rejects loopback targets before any fetch.
	// WHY: Ingestion crawls attacker-influenced URLs; SSRF must fail closed.
	e := New(Config{}, nil)
	if _, err := e.Extract(context.Background(), "http://127.0.0.1:9/"); err == nil {
		t.Error("expected SSRF block for loopback URL")
	}
}

func TestBatchExtract_CoversEveryURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/bad", srv.URL + "/c"}
	items := testExtractor().BatchExtract(context.Background(), urls)

	if len(items) != len(urls) {
		t.Fatalf("items: got %d, want %d", len(items), len(urls))
	}
	byURL := map[string]*Result{}
	for _, it := range items {
		byURL[it.URL] = it.Result
	}
	if byURL[urls[0]] == nil || byURL[urls[2]] == nil {
		t.Error("good URLs should have results")
	}
	if byURL[urls[1]] != nil {
		t.Error("failed URL should have nil result")
	}
}

func TestBatchExtract_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		defer atomic.AddInt64(&inFlight, -1)
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	e := New(Config{URLValidator: noopValidator, MaxConcurrency: 2}, nil)
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/p%d", srv.URL, i)
	}
	e.BatchExtract(context.Background(), urls)

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency: got %d, want <= 2", peak)
	}
}
