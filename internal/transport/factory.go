// internal/transport/factory.go
package transport

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"label-service/internal/model"
	"label-service/internal/niimbot"
)

// BluetoothConfig represents Bluetooth RFCOMM configuration
type BluetoothConfig struct {
	Address     string        `json:"address"`
	Channel     int           `json:"channel"`
	ReadTimeout time.Duration `json:"read_timeout"`
}

// Config selects and configures a transport
type Config struct {
	ConnectionType model.ConnectionType
	// Address is a port name (or "auto") for serial and USB, a MAC address for Bluetooth.
	Address     string
	BaudRate    int
	ReadTimeout time.Duration
}

// New creates a transport based on connection type and configuration. Serial
// ports named "auto" are resolved through lister.
func New(cfg Config, lister PortLister, logger *zap.Logger) (Transport, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if lister == nil {
		lister = SystemPorts
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 500 * time.Millisecond
	}

	switch cfg.ConnectionType {
	case model.ConnectionTypeSerial, model.ConnectionTypeUSB:
		port, err := ResolvePort(lister, cfg.Address)
		if err != nil {
			return nil, err
		}
		serialConfig := DefaultSerialConfig(port)
		if cfg.BaudRate > 0 {
			serialConfig.BaudRate = cfg.BaudRate
		}
		serialConfig.ReadTimeout = readTimeout

		logger.Debug("Creating serial transport",
			zap.String("port", serialConfig.Port),
			zap.Int("baud_rate", serialConfig.BaudRate),
		)
		return NewSerialTransport(serialConfig, cfg.ConnectionType, logger), nil

	case model.ConnectionTypeBluetooth:
		mac, _ := NormalizeMAC(cfg.Address)
		btConfig := &BluetoothConfig{
			Address:     mac,
			Channel:     1,
			ReadTimeout: readTimeout,
		}
		logger.Debug("Creating Bluetooth transport",
			zap.String("address", mac),
			zap.Bool("native_rfcomm", NativeRFCOMM),
		)
		return newBluetoothTransport(btConfig, lister, logger)

	default:
		return nil, &niimbot.ConfigurationError{
			Field:  "connection",
			Reason: fmt.Sprintf("unsupported connection type %q", cfg.ConnectionType),
		}
	}
}

// ValidateConfig validates configuration for a specific connection type
func ValidateConfig(cfg Config) error {
	switch cfg.ConnectionType {
	case model.ConnectionTypeSerial, model.ConnectionTypeUSB:
		if cfg.BaudRate == 0 {
			return nil
		}
		validRates := []int{9600, 19200, 38400, 57600, 115200, 230400}
		for _, rate := range validRates {
			if cfg.BaudRate == rate {
				return nil
			}
		}
		return &niimbot.ConfigurationError{Field: "baud_rate", Reason: fmt.Sprintf("invalid baud rate %d", cfg.BaudRate)}

	case model.ConnectionTypeBluetooth:
		if cfg.Address == "" {
			return &niimbot.ConfigurationError{Field: "address", Reason: "Bluetooth connection requires a MAC address"}
		}
		if _, ok := NormalizeMAC(cfg.Address); !ok {
			return &niimbot.ConfigurationError{Field: "address", Reason: fmt.Sprintf("invalid MAC address %q", cfg.Address)}
		}
		return nil

	default:
		return &niimbot.ConfigurationError{
			Field:  "connection",
			Reason: fmt.Sprintf("unsupported connection type %q", cfg.ConnectionType),
		}
	}
}
