package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fileforge/fileforge/internal/domain"
	"github.com/fileforge/fileforge/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// JobStorage persists conversion jobs
type JobStorage struct {
	db *sqlx.DB
}

func NewJobStorage(pg *postgresql.Client) *JobStorage {
	return &JobStorage{
		db: pg.GetDB(),
	}
}

func (s *JobStorage) Create(ctx context.Context, job *domain.ConversionJob) error {
	query := `
		INSERT INTO conversion_jobs (
			job_id, user_id, source_format, target_format,
			input_file_name, webhook_url, status, output_file_name,
			output_data, storage_key, error_message, created_at, completed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.UserID,
		job.SourceFormat,
		job.TargetFormat,
		job.InputFileName,
		job.WebhookURL,
		job.Status,
		job.OutputFileName,
		job.OutputData,
		job.StorageKey,
		job.ErrorMessage,
		job.CreatedAt,
		job.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create conversion job: %w", err)
	}

	return nil
}

func (s *JobStorage) Update(ctx context.Context, job *domain.ConversionJob) error {
	query := `
		UPDATE conversion_jobs
		SET status = $1,
		    output_file_name = $2,
		    output_data = $3,
		    storage_key = $4,
		    error_message = $5,
		    completed_at = $6
		WHERE job_id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		job.Status,
		job.OutputFileName,
		job.OutputData,
		job.StorageKey,
		job.ErrorMessage,
		job.CompletedAt,
		job.JobID,
	)

	if err != nil {
		return fmt.Errorf("failed to update conversion job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

func (s *JobStorage) GetByID(ctx context.Context, jobID string) (*domain.ConversionJob, error) {
	var job domain.ConversionJob
	query := `
		SELECT
			job_id, user_id, source_format, target_format,
			input_file_name, webhook_url, status, output_file_name,
			output_data, storage_key, error_message, created_at, completed_at
		FROM conversion_jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get conversion job: %w", err)
	}

	return &job, nil
}

// JobFilter narrows a user's job listing
type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position of the last job on the previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListByUser returns up to PageSize+1 jobs for the user, newest first. The
// extra row tells the caller whether another page exists. Output payloads are
// not selected; listings carry descriptors only.
func (s *JobStorage) ListByUser(ctx context.Context, userID string, filter JobFilter) ([]domain.ConversionJob, error) {
	query := `
		SELECT
			job_id, user_id, source_format, target_format,
			input_file_name, webhook_url, status, output_file_name,
			storage_key, error_message, created_at, completed_at
		FROM conversion_jobs
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Keyset pagination keyed on (created_at, job_id) for a stable order
	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.ConversionJob
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversion jobs: %w", err)
	}

	return jobs, nil
}
