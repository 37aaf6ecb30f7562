// Package store persists search sessions, ingestion jobs, virtual sources
// and news items in SQLite.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a row does not exist or is owned by
// another user.
var ErrNotFound = errors.New("store: not found")

// Job statuses. A job moves queued -> running -> completed|failed and
// never leaves a terminal status.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Persist modes for ingestion jobs.
const (
	ModeSnippet  = "snippet"
	ModeEnriched = "enriched"
)

// MaxFailedURLs caps the failed-URL list stored per job.
const MaxFailedURLs = 100

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
