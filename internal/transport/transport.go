// internal/transport/transport.go
package transport

import (
	"context"
	"errors"
	"time"

	"label-service/internal/model"
)

// ErrNotOpen is returned by Read and Write before Open or after Close.
var ErrNotOpen = errors.New("transport not open")

// Transport is a bidirectional byte stream to one printer
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication. Read may return an empty slice when nothing arrived
	// within the read timeout.
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Transport information
	Type() model.ConnectionType
	Stats() Stats
}

// Stats provides transport-level counters
type Stats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// updateAverageLatency updates the running average latency
func (s *Stats) updateAverageLatency(latency time.Duration) {
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}
