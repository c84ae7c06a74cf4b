// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventJobStarted   EventType = "job.started"
	EventJobState     EventType = "job.state"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
)

// PrintEvent represents a job progress event pushed to websocket clients
type PrintEvent struct {
	ID          uuid.UUID  `json:"id"`
	EventType   EventType  `json:"event_type"`
	JobID       uuid.UUID  `json:"job_id"`
	PrinterName string     `json:"printer_name"`
	Data        JSONObject `json:"data"`
	Timestamp   time.Time  `json:"timestamp"`
	Source      string     `json:"source"`
	Severity    string     `json:"severity"` // INFO, WARNING, ERROR
}

// NewPrintEvent stamps a new event
func NewPrintEvent(eventType EventType, job *PrintJob, data JSONObject) PrintEvent {
	severity := "INFO"
	if eventType == EventJobFailed {
		severity = "ERROR"
	}
	return PrintEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		JobID:       job.ID,
		PrinterName: job.PrinterName,
		Data:        data,
		Timestamp:   time.Now(),
		Source:      "printer-service",
		Severity:    severity,
	}
}
