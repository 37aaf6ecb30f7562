package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okanezen/newshub/dbopen"
	"github.com/okanezen/newshub/idgen"
)

// NewsItem is one stored article. URL is stored normalized and is the
// dedup key within a source.
type NewsItem struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	SourceID    string         `json:"source_id"`
	SourceName  string         `json:"source_name"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	Author      string         `json:"author,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	PublishedAt *int64         `json:"published_at,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Engine      string         `json:"engine,omitempty"`
	RawScore    float64        `json:"raw_score,omitempty"`
	Quality     float64        `json:"quality"`
	URLHash     string         `json:"url_hash,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CrawledAt   int64          `json:"crawled_at"`
	CreatedAt   int64          `json:"created_at"`
}

// ExistingItemURLs reports which of the given URLs already exist for the
// source. URLs are matched as stored, so callers normalize first.
func (s *Store) ExistingItemURLs(ctx context.Context, userID, sourceID string, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, 0, len(urls)+2)
	args = append(args, userID, sourceID)
	for _, u := range urls {
		args = append(args, u)
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT url FROM news_items WHERE user_id = ? AND source_id = ? AND url IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("existing urls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(urls))
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out[u] = true
	}
	return out, rows.Err()
}

// InsertItems writes a batch in one transaction. Rows whose URL already
// exists in the source are silently skipped and counted as duplicates, so
// a race between the pre-check and the insert cannot fail the batch.
func (s *Store) InsertItems(ctx context.Context, items []*NewsItem) (stored, duplicates int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}
	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stored, duplicates = 0, 0
		now := time.Now().UnixMilli()
		for _, it := range items {
			if it.ID == "" {
				it.ID = idgen.New()
			}
			if it.CreatedAt == 0 {
				it.CreatedAt = now
			}
			if it.CrawledAt == 0 {
				it.CrawledAt = now
			}
			metadata := "{}"
			if len(it.Metadata) > 0 {
				data, merr := json.Marshal(it.Metadata)
				if merr != nil {
					return fmt.Errorf("marshal item metadata: %w", merr)
				}
				metadata = string(data)
			}
			res, ierr := tx.ExecContext(ctx,
				`INSERT INTO news_items
				(id, user_id, source_id, source_name, title, url, description, content,
				author, image_url, published_at, provider, engine, raw_score, quality,
				url_hash, metadata_json, crawled_at, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(user_id, source_id, url) DO NOTHING`,
				it.ID, it.UserID, it.SourceID, it.SourceName, it.Title, it.URL,
				it.Description, it.Content, it.Author, it.ImageURL, it.PublishedAt,
				it.Provider, it.Engine, it.RawScore, it.Quality, it.URLHash,
				metadata, it.CrawledAt, it.CreatedAt)
			if ierr != nil {
				return fmt.Errorf("insert item: %w", ierr)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				stored++
			} else {
				duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return stored, duplicates, nil
}

// GetItem loads one stored item scoped to its owner.
func (s *Store) GetItem(ctx context.Context, userID, id string) (*NewsItem, error) {
	var it NewsItem
	var metadata string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, source_id, source_name, title, url, description, content,
			author, image_url, published_at, provider, engine, raw_score, quality,
			url_hash, metadata_json, crawled_at, created_at
		FROM news_items WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&it.ID, &it.UserID, &it.SourceID, &it.SourceName, &it.Title, &it.URL,
			&it.Description, &it.Content, &it.Author, &it.ImageURL, &it.PublishedAt,
			&it.Provider, &it.Engine, &it.RawScore, &it.Quality, &it.URLHash,
			&metadata, &it.CrawledAt, &it.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &it.Metadata); err != nil {
			return nil, fmt.Errorf("decode item metadata: %w", err)
		}
	}
	return &it, nil
}
