//go:build linux

// internal/transport/bluetooth_linux.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"label-service/internal/model"
	"label-service/internal/niimbot"
)

// NativeRFCOMM reports that Bluetooth printers are reached through a kernel
// RFCOMM socket rather than a virtual serial port.
const NativeRFCOMM = true

// RFCOMMTransport implements Transport over a Linux RFCOMM socket
type RFCOMMTransport struct {
	config *BluetoothConfig
	fd     int
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  Stats
}

// NewRFCOMMTransport creates a transport for the printer at config.Address
func NewRFCOMMTransport(config *BluetoothConfig, logger *zap.Logger) *RFCOMMTransport {
	return &RFCOMMTransport{
		config: config,
		fd:     -1,
		logger: logger.With(
			zap.String("transport", "rfcomm"),
			zap.String("address", config.Address),
		),
	}
}

func newBluetoothTransport(config *BluetoothConfig, _ PortLister, logger *zap.Logger) (Transport, error) {
	return NewRFCOMMTransport(config, logger), nil
}

// rfcommAddr converts a MAC address into the little-endian byte order the kernel expects.
func rfcommAddr(mac string) ([6]byte, error) {
	var addr [6]byte
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return addr, fmt.Errorf("invalid MAC address %s: %w", mac, err)
	}
	if len(hw) != 6 {
		return addr, fmt.Errorf("MAC address must be 6 bytes, got %d", len(hw))
	}
	for i := 0; i < 6; i++ {
		addr[i] = hw[5-i]
	}
	return addr, nil
}

// Open connects the RFCOMM socket
func (rt *RFCOMMTransport) Open(ctx context.Context) error {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	if rt.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := rfcommAddr(rt.config.Address)
	if err != nil {
		return &niimbot.ConfigurationError{Field: "address", Reason: err.Error()}
	}

	rt.logger.Info("Connecting RFCOMM socket", zap.Int("channel", rt.config.Channel))

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return &niimbot.ConnectionError{Op: "socket", Err: err}
	}

	sa := &unix.SockaddrRFCOMM{Addr: addr, Channel: uint8(rt.config.Channel)}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		rt.logger.Error("Failed to connect RFCOMM socket", zap.Error(err))
		return &niimbot.ConnectionError{Op: "connect " + rt.config.Address, Err: err}
	}

	tv := unix.NsecToTimeval(rt.config.ReadTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return &niimbot.ConnectionError{Op: "set read timeout", Err: err}
	}

	rt.fd = fd
	rt.isOpen = true
	rt.stats.IsConnected = true
	rt.stats.LastActivity = time.Now()

	rt.logger.Info("RFCOMM socket connected")
	return nil
}

// Close closes the socket. Closing twice is a no-op.
func (rt *RFCOMMTransport) Close() error {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	if !rt.isOpen {
		return nil
	}

	err := unix.Close(rt.fd)
	rt.fd = -1
	rt.isOpen = false
	rt.stats.IsConnected = false

	if err != nil {
		return fmt.Errorf("failed to close RFCOMM socket: %w", err)
	}
	rt.logger.Info("RFCOMM socket closed")
	return nil
}

func (rt *RFCOMMTransport) IsOpen() bool {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()
	return rt.isOpen
}

// Write sends all of data
func (rt *RFCOMMTransport) Write(ctx context.Context, data []byte) error {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	if !rt.isOpen {
		return &niimbot.ConnectionError{Op: "write", Err: ErrNotOpen}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	startTime := time.Now()
	for written := 0; written < len(data); {
		n, err := unix.Write(rt.fd, data[written:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			rt.stats.ErrorCount++
			return &niimbot.ConnectionError{Op: "write", Err: err}
		}
		written += n
	}

	rt.stats.BytesWritten += int64(len(data))
	rt.stats.OperationCount++
	rt.stats.LastActivity = time.Now()
	rt.stats.updateAverageLatency(time.Since(startTime))
	return nil
}

// Read performs one receive bounded by the socket's SO_RCVTIMEO
func (rt *RFCOMMTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	if !rt.isOpen {
		return nil, &niimbot.ConnectionError{Op: "read", Err: ErrNotOpen}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxBytes)
	n, err := unix.Read(rt.fd, buffer)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		rt.stats.ErrorCount++
		return nil, &niimbot.ConnectionError{Op: "read", Err: err}
	}
	if n <= 0 {
		return nil, nil
	}

	rt.stats.BytesRead += int64(n)
	rt.stats.OperationCount++
	rt.stats.LastActivity = time.Now()
	return buffer[:n], nil
}

func (rt *RFCOMMTransport) Type() model.ConnectionType {
	return model.ConnectionTypeBluetooth
}

func (rt *RFCOMMTransport) Stats() Stats {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()
	return rt.stats
}
