package store

import (
	"context"
	"fmt"
	"time"

	"github.com/okanezen/newshub/dbopen"
	"github.com/okanezen/newshub/idgen"
)

// VirtualSource is the per-user synthetic source a provider's results are
// filed under. One row per (user, provider).
type VirtualSource struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Provider  string `json:"provider"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	ItemCount int    `json:"item_count"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// FindOrCreateSource returns the virtual source for (user, provider),
// creating it when missing. Concurrent callers converge on the same row:
// the insert ignores the unique-key conflict and the follow-up read sees
// whichever row won.
func (s *Store) FindOrCreateSource(ctx context.Context, src *VirtualSource) (*VirtualSource, error) {
	now := time.Now().UnixMilli()
	id := src.ID
	if id == "" {
		id = idgen.New()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO virtual_sources (id, user_id, provider, name, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider) DO NOTHING`,
		id, src.UserID, src.Provider, src.Name, src.URL, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert virtual source: %w", err)
	}

	var out VirtualSource
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, provider, name, url, item_count, created_at, updated_at
		FROM virtual_sources WHERE user_id = ? AND provider = ?`,
		src.UserID, src.Provider).
		Scan(&out.ID, &out.UserID, &out.Provider, &out.Name, &out.URL,
			&out.ItemCount, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get virtual source: %w", err)
	}
	return &out, nil
}

// AddSourceItems bumps the cached item counter after an ingestion batch.
func (s *Store) AddSourceItems(ctx context.Context, id string, n int) error {
	if n == 0 {
		return nil
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE virtual_sources SET item_count = item_count + ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("bump source count: %w", err)
	}
	return nil
}

// ListSources returns a user's virtual sources, newest first.
func (s *Store) ListSources(ctx context.Context, userID string) ([]VirtualSource, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, provider, name, url, item_count, created_at, updated_at
		FROM virtual_sources WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []VirtualSource
	for rows.Next() {
		var src VirtualSource
		if err := rows.Scan(&src.ID, &src.UserID, &src.Provider, &src.Name, &src.URL,
			&src.ItemCount, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
