// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"label-service/internal/model"
)

// memoryJobRepository keeps job history in process memory. When maxJobs is
// reached the oldest finished job is evicted.
type memoryJobRepository struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*model.PrintJob
	maxJobs int
	logger  *zap.Logger
}

// NewMemoryJobRepository creates a job repository used when the database is disabled
func NewMemoryJobRepository(maxJobs int, logger *zap.Logger) JobRepository {
	return &memoryJobRepository{
		jobs:    make(map[uuid.UUID]*model.PrintJob),
		maxJobs: maxJobs,
		logger:  logger,
	}
}

func (r *memoryJobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("print job %s already exists", job.ID)
	}
	if r.maxJobs > 0 && len(r.jobs) >= r.maxJobs {
		r.evictOldestLocked()
	}

	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *memoryJobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *memoryJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return cloneJob(job), nil
}

func (r *memoryJobRepository) List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*model.PrintJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.PrinterName != "" && job.PrinterName != filter.PrinterName {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		matched = append(matched, job)
	}

	sortNewestFirst(matched)
	total := len(matched)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	start := min(filter.Offset, total)
	end := min(start+limit, total)

	page := make([]*model.PrintJob, 0, end-start)
	for _, job := range matched[start:end] {
		page = append(page, cloneJob(job))
	}
	return page, total, nil
}

func (r *memoryJobRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, job := range r.jobs {
		if job.IsCompleted() && job.CreatedAt.Before(olderThan) {
			delete(r.jobs, id)
			deleted++
		}
	}

	if deleted > 0 {
		r.logger.Info("Deleted old print jobs",
			zap.Int64("rows_deleted", deleted),
			zap.Time("older_than", olderThan),
		)
	}
	return deleted, nil
}

func (r *memoryJobRepository) evictOldestLocked() {
	var oldest *model.PrintJob
	for _, job := range r.jobs {
		if !job.IsCompleted() {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest != nil {
		delete(r.jobs, oldest.ID)
	}
}

func sortNewestFirst(jobs []*model.PrintJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID.String() > jobs[j].ID.String()
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

func cloneJob(job *model.PrintJob) *model.PrintJob {
	c := *job
	if job.Options != nil {
		c.Options = make(model.JSONObject, len(job.Options))
		for k, v := range job.Options {
			c.Options[k] = v
		}
	}
	return &c
}
