// internal/repository/job_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"label-service/internal/database"
	"label-service/internal/model"
	"label-service/internal/utils"
)

const jobColumns = `id, printer_name, model, density, label_type, width, height, rows,
	status, state, error_code, error_message, options, created_at, started_at,
	completed_at, duration_ms`

// jobRepository implements JobRepository on Postgres
type jobRepository struct {
	db       *database.DB
	logger   *zap.Logger
	queryLog *utils.ServiceLogger
}

// NewJobRepository creates a Postgres-backed job repository
func NewJobRepository(db *database.DB, logger *zap.Logger) JobRepository {
	return &jobRepository{
		db:       db,
		logger:   logger,
		queryLog: utils.NewServiceLogger(logger, "job-repository"),
	}
}

// logQuery records a statement at debug level, or at error level when it failed.
// A missing row is not a failure.
func (r *jobRepository) logQuery(query string, args []interface{}, start time.Time, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	r.queryLog.LogDatabaseQuery(strings.Join(strings.Fields(query), " "), args, time.Since(start), err)
}

// Create inserts a new job record
func (r *jobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	query := `
		INSERT INTO print_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	options := job.Options
	if options == nil {
		options = model.JSONObject{}
	}

	args := []interface{}{
		job.ID, job.PrinterName, job.Model, job.Density, job.LabelType,
		job.Width, job.Height, job.Rows, job.Status, job.State,
		job.ErrorCode, job.ErrorMessage, options, job.CreatedAt,
		job.StartedAt, job.CompletedAt, job.DurationMs,
	}
	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, args...)
	r.logQuery(query, args, start, err)
	if err != nil {
		return fmt.Errorf("failed to create print job: %w", err)
	}

	return nil
}

// Update stores the mutable fields of a job
func (r *jobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	query := `
		UPDATE print_jobs SET
			density = $2, width = $3, height = $4, rows = $5, status = $6,
			state = $7, error_code = $8, error_message = $9, started_at = $10,
			completed_at = $11, duration_ms = $12
		WHERE id = $1
	`

	args := []interface{}{
		job.ID, job.Density, job.Width, job.Height, job.Rows, job.Status,
		job.State, job.ErrorCode, job.ErrorMessage, job.StartedAt,
		job.CompletedAt, job.DurationMs,
	}
	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, args...)
	r.logQuery(query, args, start, err)
	if err != nil {
		return fmt.Errorf("failed to update print job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}

	return nil
}

// GetByID retrieves a job by ID
func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = $1`

	start := time.Now()
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	r.logQuery(query, []interface{}{id}, start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}

	return job, nil
}

// List retrieves jobs matching the filter, newest first
func (r *jobRepository) List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.PrinterName != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("printer_name = $%d", argIndex))
		args = append(args, filter.PrinterName)
		argIndex++
	}

	if filter.Status != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM print_jobs %s", whereClause)
	var total int
	start := time.Now()
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	r.logQuery(countQuery, args, start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count print jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM print_jobs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, filter.Offset)

	start = time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.logQuery(query, args, start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate print jobs: %w", err)
	}

	return jobs, total, nil
}

// DeleteOlderThan removes finished job records created before olderThan
func (r *jobRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM print_jobs WHERE created_at < $1 AND status IN ($2, $3)`

	args := []interface{}{olderThan, model.JobStatusCompleted, model.JobStatusFailed}
	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, args...)
	r.logQuery(query, args, start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old print jobs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Deleted old print jobs",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Time("older_than", olderThan),
	)

	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.PrintJob, error) {
	job := &model.PrintJob{}
	err := row.Scan(
		&job.ID, &job.PrinterName, &job.Model, &job.Density, &job.LabelType,
		&job.Width, &job.Height, &job.Rows, &job.Status, &job.State,
		&job.ErrorCode, &job.ErrorMessage, &job.Options, &job.CreatedAt,
		&job.StartedAt, &job.CompletedAt, &job.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
