package ingest

import (
	"context"
	"testing"
	"time"
)

// WHAT: two requests to one host are spaced by the interval.
// WHY: per-domain pacing is a courtesy floor, not a global throttle.
func TestPacerSpacesSameHost(t *testing.T) {
	p := newPacer(80 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.wait(ctx, "https://example.com/a"); err != nil {
		t.Fatal(err)
	}
	if err := p.wait(ctx, "https://example.com/b"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("second request after %v, want >= 80ms", elapsed)
	}
}

func TestPacerIndependentHosts(t *testing.T) {
	p := newPacer(500 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.wait(ctx, "https://a.example/x"); err != nil {
		t.Fatal(err)
	}
	if err := p.wait(ctx, "https://b.example/y"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("different hosts delayed each other: %v", elapsed)
	}
}

func TestPacerDisabled(t *testing.T) {
	p := newPacer(0)
	start := time.Now()
	for range 5 {
		if err := p.wait(context.Background(), "https://example.com/"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("disabled pacer still throttles: %v", elapsed)
	}
}

func TestPacerCancelled(t *testing.T) {
	p := newPacer(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.wait(ctx, "https://example.com/"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := p.wait(ctx, "https://example.com/"); err == nil {
		t.Fatal("want context error while throttled")
	}
}
