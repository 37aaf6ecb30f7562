// Package index maintains the FTS5 index over stored news items and
// serves the internal half of augmented search.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/okanezen/newshub/dbopen"
	"github.com/okanezen/newshub/federation/internal/store"
)

// Doc is one internal search hit.
type Doc struct {
	NewsID      string  `json:"news_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"url"`
	SourceName  string  `json:"source_name,omitempty"`
	Score       float64 `json:"score"`
}

type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{db: db, logger: logger}
}

// Upsert replaces the indexed documents for the given items. Intended to
// be best-effort: callers log the error and move on, ingestion must not
// fail because the index is behind.
func (ix *Index) Upsert(ctx context.Context, items []*store.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	return dbopen.RunTx(ctx, ix.db, func(tx *sql.Tx) error {
		for _, it := range items {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM news_fts WHERE news_id = ?`, it.ID); err != nil {
				return fmt.Errorf("index delete: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO news_fts (news_id, user_id, title, description, content)
				VALUES (?, ?, ?, ?, ?)`,
				it.ID, it.UserID, it.Title, it.Description, it.Content); err != nil {
				return fmt.Errorf("index insert: %w", err)
			}
		}
		return nil
	})
}

// Search runs a ranked FTS5 match over the user's items. An empty or
// all-punctuation query returns no hits.
func (ix *Index) Search(ctx context.Context, userID, query string, limit int) ([]Doc, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT f.news_id, f.title, f.description, i.url, i.source_name, rank
		FROM news_fts f
		JOIN news_items i ON i.id = f.news_id
		WHERE news_fts MATCH ? AND f.user_id = ?
		ORDER BY rank
		LIMIT ?`, match, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var d Doc
		var rank float64
		if err := rows.Scan(&d.NewsID, &d.Title, &d.Description, &d.URL, &d.SourceName, &rank); err != nil {
			return nil, fmt.Errorf("scan index hit: %w", err)
		}
		// bm25 rank is negative-is-better; flip so bigger means better.
		d.Score = -rank
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete drops documents from the index.
func (ix *Index) Delete(ctx context.Context, newsIDs ...string) error {
	for _, id := range newsIDs {
		if _, err := dbopen.Exec(ctx, ix.db,
			`DELETE FROM news_fts WHERE news_id = ?`, id); err != nil {
			return fmt.Errorf("index delete: %w", err)
		}
	}
	return nil
}

// ftsQuery turns free text into a safe MATCH expression: every term is
// quoted so user punctuation cannot reach the FTS5 query parser.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
