// Package vsource files externally ingested items under per-user virtual
// sources, one per provider.
package vsource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/okanezen/newshub/federation/internal/store"
	"github.com/okanezen/newshub/urlnorm"
)

// SearchIndex receives stored items for indexing. Upsert failures are
// logged, never propagated: the system of record is the store.
type SearchIndex interface {
	Upsert(ctx context.Context, items []*store.NewsItem) error
}

// Outcome summarizes one ingestion batch.
type Outcome struct {
	Stored     int
	Duplicates int
	Source     *store.VirtualSource
}

type Manager struct {
	store  *store.Store
	index  SearchIndex
	logger *slog.Logger
}

func New(s *store.Store, index SearchIndex, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, index: index, logger: logger}
}

// GetOrCreate returns the user's virtual source for a provider, creating
// it on first use. Idempotent and safe under concurrency.
func (m *Manager) GetOrCreate(ctx context.Context, userID, providerName string) (*store.VirtualSource, error) {
	src, err := m.store.FindOrCreateSource(ctx, &store.VirtualSource{
		UserID:   userID,
		Provider: providerName,
		Name:     sourceName(providerName),
		URL:      "virtual://" + providerName,
	})
	if err != nil {
		return nil, fmt.Errorf("virtual source for %s: %w", providerName, err)
	}
	return src, nil
}

// Ingest persists a batch of items under the provider's virtual source.
// URLs are normalized before dedup, items already present count as
// duplicates, and the index update afterwards is best-effort.
func (m *Manager) Ingest(ctx context.Context, userID, providerName string, items []*store.NewsItem) (*Outcome, error) {
	src, err := m.GetOrCreate(ctx, userID, providerName)
	if err != nil {
		return nil, err
	}

	fresh := make([]*store.NewsItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	urls := make([]string, 0, len(items))
	for _, it := range items {
		it.URL = urlnorm.MustNormalize(it.URL)
		if it.URL == "" || seen[it.URL] {
			continue
		}
		seen[it.URL] = true
		it.UserID = userID
		it.SourceID = src.ID
		if it.SourceName == "" {
			it.SourceName = src.Name
		}
		fresh = append(fresh, it)
		urls = append(urls, it.URL)
	}
	intraBatchDupes := len(items) - len(fresh)

	existing, err := m.store.ExistingItemURLs(ctx, userID, src.ID, urls)
	if err != nil {
		return nil, err
	}
	toInsert := fresh[:0]
	for _, it := range fresh {
		if existing[it.URL] {
			continue
		}
		toInsert = append(toInsert, it)
	}
	preDupes := len(urls) - len(toInsert)

	stored, raceDupes, err := m.store.InsertItems(ctx, toInsert)
	if err != nil {
		return nil, fmt.Errorf("ingest items: %w", err)
	}
	if err := m.store.AddSourceItems(ctx, src.ID, stored); err != nil {
		return nil, err
	}

	if m.index != nil && stored > 0 {
		if err := m.index.Upsert(ctx, toInsert); err != nil {
			m.logger.Warn("search index update failed",
				"source", src.ID, "items", stored, "error", err)
		}
	}

	return &Outcome{
		Stored:     stored,
		Duplicates: intraBatchDupes + preDupes + raceDupes,
		Source:     src,
	}, nil
}

func sourceName(providerName string) string {
	if providerName == "" {
		return "External search"
	}
	display := providerName
	switch providerName {
	case "searxng":
		display = "SearXNG"
	case "tavily":
		display = "Tavily"
	default:
		display = strings.ToUpper(providerName[:1]) + providerName[1:]
	}
	return display + " external search"
}
