// internal/transport/serial.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"label-service/internal/model"
	"label-service/internal/niimbot"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port        string        `json:"port"`
	BaudRate    int           `json:"baud_rate"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// DefaultSerialConfig returns the 115200 8N1 settings the printers use.
func DefaultSerialConfig(port string) *SerialConfig {
	return &SerialConfig{
		Port:        port,
		BaudRate:    115200,
		ReadTimeout: 500 * time.Millisecond,
	}
}

// portOpener is serial.Open, swappable in tests.
type portOpener func(name string, mode *serial.Mode) (serial.Port, error)

// SerialTransport implements Transport over a serial port
type SerialTransport struct {
	config   *SerialConfig
	connType model.ConnectionType
	open     portOpener
	port     serial.Port
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
	stats    Stats
}

// NewSerialTransport creates a serial transport. connType is reported by Type and
// distinguishes USB-serial adapters from Bluetooth virtual COM ports.
func NewSerialTransport(config *SerialConfig, connType model.ConnectionType, logger *zap.Logger) *SerialTransport {
	return &SerialTransport{
		config:   config,
		connType: connType,
		open:     serial.Open,
		logger: logger.With(
			zap.String("transport", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial port
func (st *SerialTransport) Open(ctx context.Context) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st.logger.Info("Opening serial port", zap.Int("baud_rate", st.config.BaudRate))

	mode := &serial.Mode{
		BaudRate: st.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := st.open(st.config.Port, mode)
	if err != nil {
		st.logger.Error("Failed to open serial port", zap.Error(err))
		return &niimbot.ConnectionError{Op: "open " + st.config.Port, Err: err}
	}

	if err := port.SetReadTimeout(st.config.ReadTimeout); err != nil {
		port.Close()
		return &niimbot.ConnectionError{Op: "set read timeout", Err: err}
	}

	st.port = port
	st.isOpen = true
	st.stats.IsConnected = true
	st.stats.LastActivity = time.Now()

	st.logger.Info("Serial port opened")
	return nil
}

// Close closes the serial port. Closing twice is a no-op.
func (st *SerialTransport) Close() error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return nil
	}

	err := st.port.Close()
	st.port = nil
	st.isOpen = false
	st.stats.IsConnected = false

	if err != nil {
		st.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	st.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the port is open
func (st *SerialTransport) IsOpen() bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.isOpen && st.port != nil
}

// Write writes all of data to the port
func (st *SerialTransport) Write(ctx context.Context, data []byte) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return &niimbot.ConnectionError{Op: "write", Err: ErrNotOpen}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	n, err := st.port.Write(data)
	if err != nil {
		st.stats.ErrorCount++
		st.logger.Error("Serial write failed", zap.Error(err))
		return &niimbot.ConnectionError{Op: "write", Err: err}
	}
	if n != len(data) {
		st.stats.ErrorCount++
		return &niimbot.ConnectionError{Op: "write", Err: fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))}
	}

	st.stats.BytesWritten += int64(n)
	st.stats.OperationCount++
	st.stats.LastActivity = time.Now()
	st.stats.updateAverageLatency(time.Since(startTime))
	return nil
}

type readResult struct {
	data []byte
	err  error
}

// Read performs one read of up to maxBytes. An empty result means the read timeout
// elapsed with nothing received.
func (st *SerialTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if !st.isOpen || st.port == nil {
		return nil, &niimbot.ConnectionError{Op: "read", Err: ErrNotOpen}
	}

	port := st.port
	buffer := make([]byte, maxBytes)
	done := make(chan readResult, 1)

	go func() {
		n, err := port.Read(buffer)
		if err != nil && !errors.Is(err, io.EOF) {
			done <- readResult{err: err}
			return
		}
		done <- readResult{data: buffer[:n]}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			st.stats.ErrorCount++
			return nil, &niimbot.ConnectionError{Op: "read", Err: result.err}
		}
		st.stats.BytesRead += int64(len(result.data))
		st.stats.OperationCount++
		if len(result.data) > 0 {
			st.stats.LastActivity = time.Now()
		}
		return result.data, nil

	case <-ctx.Done():
		// The pending read ends at the port's read timeout.
		return nil, ctx.Err()
	}
}

// Type returns the connection type
func (st *SerialTransport) Type() model.ConnectionType {
	return st.connType
}

// Stats returns a snapshot of the transport counters
func (st *SerialTransport) Stats() Stats {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return st.stats
}
