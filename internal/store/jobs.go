package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"filescribe/internal/queue"
	"filescribe/internal/transcript"
)

const jobColumns = `id, file_path, file_name, file_size, status, progress, transcription,
	segments_json, media_duration_ms, error_message, created_at, started_at, completed_at, duration_seconds`

// SaveJob inserts or replaces a job snapshot. Creation order is preserved
// across updates.
func (s *Store) SaveJob(ctx context.Context, job queue.Job) error {
	var segments sql.NullString
	if len(job.Segments) > 0 {
		data, err := json.Marshal(job.Segments)
		if err != nil {
			return fmt.Errorf("encode segments: %w", err)
		}
		segments = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			status = excluded.status,
			progress = excluded.progress,
			transcription = excluded.transcription,
			segments_json = excluded.segments_json,
			media_duration_ms = excluded.media_duration_ms,
			error_message = excluded.error_message,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			duration_seconds = excluded.duration_seconds`,
		job.ID,
		job.FilePath,
		job.FileName,
		job.FileSize,
		string(job.Status),
		job.Progress,
		nullString(job.Transcription),
		segments,
		job.MediaDurationMS,
		nullString(job.Error),
		formatTime(job.CreatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// DeleteJobs removes the given jobs. Unknown ids are ignored.
func (s *Store) DeleteJobs(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.execWithRetry(ctx, "DELETE FROM jobs WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}

// LoadJobs returns every persisted job in creation order.
func (s *Store) LoadJobs(ctx context.Context) ([]queue.Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs reports the number of persisted jobs per status.
func (s *Store) CountJobs(ctx context.Context) (map[queue.Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := make(map[queue.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[queue.Status(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (queue.Job, error) {
	var (
		job           queue.Job
		status        string
		transcription sql.NullString
		segments      sql.NullString
		errorMessage  sql.NullString
		createdAt     string
		startedAt     sql.NullString
		completedAt   sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.FilePath,
		&job.FileName,
		&job.FileSize,
		&status,
		&job.Progress,
		&transcription,
		&segments,
		&job.MediaDurationMS,
		&errorMessage,
		&createdAt,
		&startedAt,
		&completedAt,
		&job.DurationSeconds,
	); err != nil {
		return queue.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = queue.Status(status)
	job.Transcription = transcription.String
	job.Error = errorMessage.String
	if segments.Valid && segments.String != "" {
		var decoded []transcript.Segment
		if err := json.Unmarshal([]byte(segments.String), &decoded); err != nil {
			return queue.Job{}, fmt.Errorf("decode segments for %s: %w", job.ID, err)
		}
		job.Segments = decoded
	}
	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return queue.Job{}, err
	}
	if job.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return queue.Job{}, err
	}
	if job.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return queue.Job{}, err
	}
	return job, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
