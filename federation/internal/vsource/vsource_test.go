package vsource

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/okanezen/newshub/dbopen"
	"github.com/okanezen/newshub/federation/internal/store"
	_ "modernc.org/sqlite"
)

type recordingIndex struct {
	upserts int
	fail    bool
}

func (r *recordingIndex) Upsert(_ context.Context, items []*store.NewsItem) error {
	r.upserts += len(items)
	if r.fail {
		return errors.New("index down")
	}
	return nil
}

func setup(t *testing.T, ix SearchIndex) *Manager {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return New(store.New(db), ix, slog.New(slog.DiscardHandler))
}

func TestGetOrCreateIdempotent(t *testing.T) {
	m := setup(t, nil)
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "u1", "searxng")
	if err != nil {
		t.Fatal(err)
	}
	if first.Name != "SearXNG external search" || first.URL != "virtual://searxng" {
		t.Fatalf("source = %+v", first)
	}
	second, err := m.GetOrCreate(ctx, "u1", "searxng")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("got new source %s on second call", second.ID)
	}
}

func TestIngestNormalizesAndDedups(t *testing.T) {
	ix := &recordingIndex{}
	m := setup(t, ix)
	ctx := context.Background()

	// Two spellings of one URL plus one fresh item.
	out, err := m.Ingest(ctx, "u1", "searxng", []*store.NewsItem{
		{URL: "https://Example.com/a?utm_source=feed", Title: "a"},
		{URL: "https://example.com/a", Title: "a again"},
		{URL: "https://example.com/b", Title: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stored != 2 || out.Duplicates != 1 {
		t.Fatalf("stored=%d dup=%d, want 2/1", out.Stored, out.Duplicates)
	}
	if ix.upserts == 0 {
		t.Fatal("index never updated")
	}

	// Re-ingesting the same URLs stores nothing.
	out, err = m.Ingest(ctx, "u1", "searxng", []*store.NewsItem{
		{URL: "https://example.com/a", Title: "a"},
		{URL: "https://example.com/b", Title: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stored != 0 || out.Duplicates != 2 {
		t.Fatalf("re-ingest stored=%d dup=%d, want 0/2", out.Stored, out.Duplicates)
	}
	if out.Source.ItemCount != 2 {
		t.Fatalf("item_count = %d, want 2", out.Source.ItemCount)
	}
}

// WHAT: the index collaborator fails.
// WHY: indexing is best-effort, ingestion still succeeds and stores rows.
func TestIngestSurvivesIndexFailure(t *testing.T) {
	m := setup(t, &recordingIndex{fail: true})
	ctx := context.Background()

	out, err := m.Ingest(ctx, "u1", "tavily", []*store.NewsItem{
		{URL: "https://example.com/x", Title: "x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stored != 1 {
		t.Fatalf("stored = %d, want 1 despite index failure", out.Stored)
	}
}

func TestSourceNameForUnknownProvider(t *testing.T) {
	m := setup(t, nil)
	src, err := m.GetOrCreate(context.Background(), "u1", "brave")
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "Brave external search" {
		t.Fatalf("name = %q", src.Name)
	}
}
