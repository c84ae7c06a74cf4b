// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the status of a print job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusPrinting  JobStatus = "PRINTING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// PrintJob is the service-level record of one print request
type PrintJob struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	PrinterName  string     `json:"printer_name" db:"printer_name"`
	Model        string     `json:"model" db:"model"`
	Density      int        `json:"density" db:"density"`
	LabelType    int        `json:"label_type" db:"label_type"`
	Width        int        `json:"width" db:"width"`
	Height       int        `json:"height" db:"height"`
	Rows         int        `json:"rows" db:"rows"`
	Status       JobStatus  `json:"status" db:"status"`
	State        string     `json:"state" db:"state"`
	ErrorCode    *string    `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	Options      JSONObject `json:"options" db:"options"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	DurationMs   *int       `json:"duration_ms,omitempty" db:"duration_ms"`
}

// IsCompleted checks if the job reached a final status
func (j *PrintJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobFilter narrows job history queries
type JobFilter struct {
	PrinterName string
	Status      JobStatus
	Limit       int
	Offset      int
}
