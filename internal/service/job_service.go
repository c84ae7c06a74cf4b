// internal/service/job_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"label-service/internal/config"
	"label-service/internal/model"
	"label-service/internal/repository"
	"label-service/internal/utils"
)

// JobService exposes print job history
type JobService struct {
	jobRepo repository.JobRepository
	config  *config.JobsConfig
	logger  *utils.ServiceLogger
}

// NewJobService creates a new job service
func NewJobService(jobRepo repository.JobRepository, cfg *config.JobsConfig, logger *zap.Logger) *JobService {
	return &JobService{
		jobRepo: jobRepo,
		config:  cfg,
		logger:  utils.NewServiceLogger(logger, "job-service"),
	}
}

// ListJobs returns a page of jobs, newest first
func (js *JobService) ListJobs(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	jobs, total, err := js.jobRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

// GetJob returns one job
func (js *JobService) GetJob(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	return js.jobRepo.GetByID(ctx, id)
}

// Cleanup deletes finished jobs older than the retention period
func (js *JobService) Cleanup(ctx context.Context) (int64, error) {
	if js.config.Retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-js.config.Retention)
	deleted, err := js.jobRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("job cleanup failed: %w", err)
	}
	return deleted, nil
}

// RunCleanup runs Cleanup on every cleanup interval until ctx is done
func (js *JobService) RunCleanup(ctx context.Context) {
	interval := js.config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := js.Cleanup(ctx); err != nil {
				js.logger.Error("Scheduled job cleanup failed", zap.Error(err))
			}
		}
	}
}
