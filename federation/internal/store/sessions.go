package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okanezen/newshub/federation/internal/provider"
	"github.com/okanezen/newshub/idgen"
)

// SearchSession is an immutable record of one external search: the query,
// the provider that served it and the results as returned. Ingestion jobs
// resolve their selections against it.
type SearchSession struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Query        string            `json:"query"`
	ProviderUsed string            `json:"provider_used"`
	Results      []provider.Result `json:"results"`
	CreatedAt    int64             `json:"created_at"`
}

// InsertSession writes a new session. Sessions are write-once; there is no
// update path.
func (s *Store) InsertSession(ctx context.Context, sess *SearchSession) error {
	if sess.ID == "" {
		sess.ID = idgen.New()
	}
	if sess.CreatedAt == 0 {
		sess.CreatedAt = time.Now().UnixMilli()
	}
	results, err := json.Marshal(sess.Results)
	if err != nil {
		return fmt.Errorf("marshal session results: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO search_sessions (id, user_id, query, provider_used, results_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Query, sess.ProviderUsed, string(results), sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads a session scoped to its owner.
func (s *Store) GetSession(ctx context.Context, userID, id string) (*SearchSession, error) {
	var sess SearchSession
	var results string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, query, provider_used, results_json, created_at
		FROM search_sessions WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&sess.ID, &sess.UserID, &sess.Query, &sess.ProviderUsed, &results, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &sess.Results); err != nil {
		return nil, fmt.Errorf("decode session results: %w", err)
	}
	return &sess, nil
}
