package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okanezen/newshub/dbopen"
	"github.com/okanezen/newshub/federation/internal/provider"
	"github.com/okanezen/newshub/idgen"
)

// IngestJob tracks one ingestion request through its lifecycle. Counters
// are written as absolute snapshots by a single driver, so readers always
// see a consistent view.
type IngestJob struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	SessionID      string   `json:"session_id"`
	Provider       string   `json:"provider"`
	Status         string   `json:"status"`
	PersistMode    string   `json:"persist_mode"`
	TotalItems     int      `json:"total_items"`
	ProcessedItems int      `json:"processed_items"`
	StoredItems    int      `json:"stored_items"`
	FailedItems    int      `json:"failed_items"`
	DuplicateItems int      `json:"duplicate_items"`
	RetryCount     int      `json:"retry_count"`
	AverageQuality float64  `json:"average_quality"`
	FailedURLs     []string `json:"failed_urls"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`

	// Selected is the snapshot of session results this job ingests.
	Selected []provider.Result `json:"-"`
}

// JobProgress is an absolute counter snapshot.
type JobProgress struct {
	Processed      int
	Stored         int
	Failed         int
	Duplicates     int
	Retries        int
	AverageQuality float64
	FailedURLs     []string
}

// InsertJob enqueues a job with its selected results frozen in.
func (s *Store) InsertJob(ctx context.Context, job *IngestJob) error {
	if job.ID == "" {
		job.ID = idgen.New()
	}
	now := time.Now().UnixMilli()
	if job.CreatedAt == 0 {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusQueued
	}
	job.TotalItems = len(job.Selected)
	selected, err := json.Marshal(job.Selected)
	if err != nil {
		return fmt.Errorf("marshal job selection: %w", err)
	}
	_, err = dbopen.Exec(ctx, s.DB,
		`INSERT INTO ingest_jobs
		(id, user_id, session_id, provider, status, persist_mode, total_items, selected_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.SessionID, job.Provider, job.Status, job.PersistMode,
		job.TotalItems, string(selected), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob loads a job scoped to its owner. The selection snapshot is not
// loaded; status reads do not need it.
func (s *Store) GetJob(ctx context.Context, userID, id string) (*IngestJob, error) {
	return s.getJob(ctx, `WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *Store) getJob(ctx context.Context, where string, args ...any) (*IngestJob, error) {
	var job IngestJob
	var failedURLs string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, session_id, provider, status, persist_mode,
			total_items, processed_items, stored_items, failed_items, duplicate_items,
			retry_count, average_quality, failed_urls, error_message, created_at, updated_at
		FROM ingest_jobs `+where, args...).
		Scan(&job.ID, &job.UserID, &job.SessionID, &job.Provider, &job.Status, &job.PersistMode,
			&job.TotalItems, &job.ProcessedItems, &job.StoredItems, &job.FailedItems, &job.DuplicateItems,
			&job.RetryCount, &job.AverageQuality, &failedURLs, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if err := json.Unmarshal([]byte(failedURLs), &job.FailedURLs); err != nil {
		return nil, fmt.Errorf("decode failed urls: %w", err)
	}
	return &job, nil
}

// ClaimNextJob atomically takes the oldest claimable job: queued, or
// running with an expired lease (a previous runner died mid-drive). The
// claim moves it to running and pushes the lease forward. Returns
// (nil, nil) when nothing is claimable.
func (s *Store) ClaimNextJob(ctx context.Context, lease time.Duration) (*IngestJob, error) {
	now := time.Now().UnixMilli()
	var id string
	var selected string
	err := s.DB.QueryRowContext(ctx,
		`UPDATE ingest_jobs
		SET status = ?, lease_until = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM ingest_jobs
			WHERE status = ? OR (status = ? AND lease_until < ?)
			ORDER BY created_at
			LIMIT 1
		)
		RETURNING id, selected_json`,
		StatusRunning, now+lease.Milliseconds(), now,
		StatusQueued, StatusRunning, now).
		Scan(&id, &selected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	job, err := s.getJob(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(selected), &job.Selected); err != nil {
		return nil, fmt.Errorf("decode job selection: %w", err)
	}
	return job, nil
}

// ExtendJobLease pushes the lease forward for a job still being driven.
func (s *Store) ExtendJobLease(ctx context.Context, id string, lease time.Duration) error {
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, s.DB,
		`UPDATE ingest_jobs SET lease_until = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now+lease.Milliseconds(), now, id, StatusRunning)
	return err
}

// UpdateJobProgress overwrites the job counters with an absolute snapshot.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, p JobProgress) error {
	failedURLs, err := marshalFailedURLs(p.FailedURLs)
	if err != nil {
		return err
	}
	_, err = dbopen.Exec(ctx, s.DB,
		`UPDATE ingest_jobs
		SET processed_items = ?, stored_items = ?, failed_items = ?, duplicate_items = ?,
			retry_count = ?, average_quality = ?, failed_urls = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		p.Processed, p.Stored, p.Failed, p.Duplicates,
		p.Retries, p.AverageQuality, failedURLs, time.Now().UnixMilli(),
		id, StatusRunning)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// FinishJob moves a running job to a terminal status with its final
// counters. Terminal rows are never written again.
func (s *Store) FinishJob(ctx context.Context, id, status, errMsg string, p JobProgress) error {
	failedURLs, err := marshalFailedURLs(p.FailedURLs)
	if err != nil {
		return err
	}
	_, err = dbopen.Exec(ctx, s.DB,
		`UPDATE ingest_jobs
		SET status = ?, error_message = ?,
			processed_items = ?, stored_items = ?, failed_items = ?, duplicate_items = ?,
			retry_count = ?, average_quality = ?, failed_urls = ?, lease_until = 0, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, errMsg,
		p.Processed, p.Stored, p.Failed, p.Duplicates,
		p.Retries, p.AverageQuality, failedURLs, time.Now().UnixMilli(),
		id, StatusRunning)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func marshalFailedURLs(urls []string) (string, error) {
	if len(urls) > MaxFailedURLs {
		urls = urls[:MaxFailedURLs]
	}
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("marshal failed urls: %w", err)
	}
	return string(data), nil
}
