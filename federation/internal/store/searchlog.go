package store

import (
	"context"
	"time"

	"github.com/okanezen/newshub/idgen"
)

// SearchLogEntry records one federated search for later inspection.
type SearchLogEntry struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Query        string `json:"query"`
	ProviderUsed string `json:"provider_used"`
	ResultCount  int    `json:"result_count"`
	SearchedAt   int64  `json:"searched_at"`
}

// LogSearch records a search. Fire-and-forget: a failed write never fails
// the search that triggered it.
func (s *Store) LogSearch(ctx context.Context, userID, query, providerUsed string, resultCount int) {
	s.DB.ExecContext(ctx,
		`INSERT INTO search_log (id, user_id, query, provider_used, result_count, searched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		idgen.New(), userID, query, providerUsed, resultCount, time.Now().UnixMilli())
}

// ListSearchLog returns a user's recent searches, newest first.
func (s *Store) ListSearchLog(ctx context.Context, userID string, limit int) ([]SearchLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, query, provider_used, result_count, searched_at
		FROM search_log WHERE user_id = ? ORDER BY searched_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchLogEntry
	for rows.Next() {
		var e SearchLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &e.ProviderUsed, &e.ResultCount, &e.SearchedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
