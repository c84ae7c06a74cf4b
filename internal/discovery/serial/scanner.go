// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"label-service/internal/discovery"
	"label-service/internal/model"
	"label-service/internal/niimbot"
	"label-service/internal/transport"
)

// Scanner lists serial ports as candidate printers
type Scanner struct {
	logger *zap.Logger
	lister transport.PortLister
}

// NewScanner creates a serial scanner. A nil lister uses the system ports.
func NewScanner(logger *zap.Logger, lister transport.PortLister) *Scanner {
	if lister == nil {
		lister = transport.SystemPorts
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		lister: lister,
	}
}

func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable reports true: port enumeration works on every supported OS.
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan enumerates serial ports without opening them
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports, err := s.lister.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}
	if len(ports) == 0 {
		s.logger.Info("No serial ports found")
		return []*discovery.DiscoveredDevice{}, nil
	}

	discovered := make([]*discovery.DiscoveredDevice, 0, len(ports))
	for _, port := range ports {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}
		discovered = append(discovered, describePort(port))
	}

	s.logger.Info("Serial scan completed", zap.Int("devices_found", len(discovered)))
	return discovered, nil
}

func describePort(port transport.PortInfo) *discovery.DiscoveredDevice {
	description := strings.ToLower(port.Description)

	device := &discovery.DiscoveredDevice{
		ConnectionType: model.ConnectionTypeSerial,
		Address:        port.Name,
		Description:    port.Description,
		SerialNumber:   port.SerialNumber,
		Location:       port.HardwareID,
		Confidence:     0.2,
		ConnectionInfo: map[string]interface{}{
			"port":        port.Name,
			"hardware_id": port.HardwareID,
			"is_usb":      port.IsUSB,
		},
	}

	switch {
	case strings.Contains(description, "bluetooth"):
		device.ConnectionType = model.ConnectionTypeBluetooth
		device.Confidence = 0.4
	case port.IsUSB:
		device.ConnectionType = model.ConnectionTypeUSB
		device.ConnectionInfo["vendor_id"] = port.VID
		device.ConnectionInfo["product_id"] = port.PID
		device.Confidence = 0.5
	}

	if strings.Contains(description, "niimbot") {
		device.Confidence = 0.9
	}
	if m, ok := guessModel(description); ok {
		device.Model = m
		device.Confidence = 0.95
	}
	return device
}

// guessModel looks for a supported model name as a separate word in text.
func guessModel(text string) (string, bool) {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, w := range words {
		if m, err := niimbot.LookupModel(w); err == nil {
			return m.Name, true
		}
	}
	return "", false
}
