package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"mediabatch/internal/jobs"
	"mediabatch/internal/services"
)

// SaveJob inserts or replaces the stored snapshot of a job.
func (s *Store) SaveJob(ctx context.Context, job jobs.Job) error {
	var outcomes any
	if job.Outcomes != nil {
		encoded, err := json.Marshal(job.Outcomes)
		if err != nil {
			return services.Wrap(services.ErrStorage, "jobstore", "save", "encode outcomes", err)
		}
		outcomes = string(encoded)
	}
	_, err := s.execWithRetry(ctx, `
INSERT INTO jobs (
    id, status, source_ref, recursive, max_file_size_mb, output_dir, item_count,
    processed, succeeded, failed, skipped, outcomes_json, error_message,
    combined_path, log_path, created_at, started_at, finished_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    item_count = excluded.item_count,
    processed = excluded.processed,
    succeeded = excluded.succeeded,
    failed = excluded.failed,
    skipped = excluded.skipped,
    outcomes_json = excluded.outcomes_json,
    error_message = excluded.error_message,
    combined_path = excluded.combined_path,
    log_path = excluded.log_path,
    started_at = excluded.started_at,
    finished_at = excluded.finished_at,
    updated_at = excluded.updated_at`,
		job.ID,
		string(job.Status),
		job.Source.Ref,
		boolToInt(job.Source.Recursive),
		job.Source.MaxFileSizeMB,
		nullableString(job.Source.OutputDir),
		nullableCount(job.ItemCount),
		job.Processed,
		job.Succeeded,
		job.Failed,
		job.Skipped,
		outcomes,
		nullableString(job.Error),
		nullableString(job.CombinedPath),
		nullableString(job.LogPath),
		formatTime(job.CreatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		formatTime(time.Now()),
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "jobstore", "save", "upsert job "+job.ID, err)
	}
	return nil
}

// LoadJobs returns every stored job ordered by creation time.
func (s *Store) LoadJobs(ctx context.Context) ([]jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "jobstore", "load", "query jobs", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "jobstore", "load", "scan job", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "jobstore", "load", "iterate jobs", err)
	}
	return out, nil
}

// Get fetches a single job. It returns nil when the job is unknown.
func (s *Store) Get(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "jobstore", "get", "job "+id, err)
	}
	return &job, nil
}

// PruneFinished deletes completed and failed jobs that finished before cutoff.
func (s *Store) PruneFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(jobs.StatusCompleted), string(jobs.StatusFailed), formatTime(cutoff),
	)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "jobstore", "prune", "delete finished jobs", err)
	}
	return res.RowsAffected()
}
