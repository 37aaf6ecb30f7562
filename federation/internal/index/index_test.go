package index

import (
	"context"
	"log/slog"
	"testing"

	"github.com/okanezen/newshub/dbopen"
	"github.com/okanezen/newshub/federation/internal/store"
	_ "modernc.org/sqlite"
)

func setup(t *testing.T) (*Index, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return New(db, slog.New(slog.DiscardHandler)), store.New(db)
}

func seed(t *testing.T, s *store.Store, ix *Index, userID string, items ...*store.NewsItem) {
	t.Helper()
	ctx := context.Background()
	src, err := s.FindOrCreateSource(ctx, &store.VirtualSource{
		UserID: userID, Provider: "searxng",
		Name: "SearXNG external search", URL: "virtual://searxng",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		it.UserID = userID
		it.SourceID = src.ID
	}
	if _, _, err := s.InsertItems(ctx, items); err != nil {
		t.Fatal(err)
	}
	if err := ix.Upsert(ctx, items); err != nil {
		t.Fatal(err)
	}
}

func TestSearchRanksMatches(t *testing.T) {
	ix, s := setup(t)
	ctx := context.Background()

	seed(t, s, ix, "u1",
		&store.NewsItem{URL: "https://a.example/1", Title: "Go generics deep dive",
			Content: "Generics in Go change how libraries are written."},
		&store.NewsItem{URL: "https://a.example/2", Title: "Rust borrow checker",
			Content: "Nothing about the other language here."},
	)

	docs, err := ix.Search(ctx, "u1", "go generics", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].URL != "https://a.example/1" || docs[0].NewsID == "" {
		t.Fatalf("hit = %+v", docs[0])
	}
	if docs[0].Score <= 0 {
		t.Fatalf("score = %v, want positive", docs[0].Score)
	}
}

// WHAT: one user's items are invisible to another.
// WHY: the index carries every user's documents in one table.
func TestSearchScopedToUser(t *testing.T) {
	ix, s := setup(t)
	ctx := context.Background()

	seed(t, s, ix, "u1",
		&store.NewsItem{URL: "https://a.example/1", Title: "Kubernetes operators"})

	docs, err := ix.Search(ctx, "u2", "kubernetes", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Fatalf("got %d docs for the wrong user", len(docs))
	}
}

func TestUpsertReplaces(t *testing.T) {
	ix, s := setup(t)
	ctx := context.Background()

	item := &store.NewsItem{URL: "https://a.example/1", Title: "draft headline"}
	seed(t, s, ix, "u1", item)

	item.Title = "final headline"
	if err := ix.Upsert(ctx, []*store.NewsItem{item}); err != nil {
		t.Fatal(err)
	}

	if docs, _ := ix.Search(ctx, "u1", "draft", 10); len(docs) != 0 {
		t.Fatal("stale document still indexed")
	}
	docs, err := ix.Search(ctx, "u1", "final", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want replaced document", len(docs))
	}
}

func TestFtsQueryQuotesPunctuation(t *testing.T) {
	ix, s := setup(t)
	ctx := context.Background()

	seed(t, s, ix, "u1",
		&store.NewsItem{URL: "https://a.example/1", Title: "C tooling news"})

	// Raw punctuation would be FTS5 syntax errors without quoting.
	for _, q := range []string{`C++ "quoted"`, "AND OR NOT", "()*"} {
		if _, err := ix.Search(ctx, "u1", q, 10); err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
	}
	if docs, _ := ix.Search(ctx, "u1", "   ", 10); docs != nil {
		t.Fatal("blank query should return no hits")
	}
}
