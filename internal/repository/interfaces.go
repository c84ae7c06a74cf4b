// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"label-service/internal/model"
)

// ErrJobNotFound is returned when no job matches the requested ID
var ErrJobNotFound = errors.New("print job not found")

// JobRepository defines print job history operations
type JobRepository interface {
	Create(ctx context.Context, job *model.PrintJob) error
	Update(ctx context.Context, job *model.PrintJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error)

	// List returns jobs newest first and the total matching the filter
	List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error)

	// DeleteOlderThan removes finished jobs created before the cutoff
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}
