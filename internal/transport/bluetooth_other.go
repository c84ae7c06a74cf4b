//go:build !linux

// internal/transport/bluetooth_other.go
package transport

import (
	"fmt"

	"go.uber.org/zap"

	"label-service/internal/model"
	"label-service/internal/niimbot"
)

// NativeRFCOMM is false where Bluetooth printers appear as virtual serial ports.
const NativeRFCOMM = false

// newBluetoothTransport opens the virtual COM port bound to the printer's address.
func newBluetoothTransport(config *BluetoothConfig, lister PortLister, logger *zap.Logger) (Transport, error) {
	ports, err := lister.ListPorts()
	if err != nil {
		return nil, &niimbot.ConnectionError{Op: "list ports", Err: err}
	}

	port, ok := FindBluetoothPort(ports, config.Address)
	if !ok {
		return nil, &niimbot.ConnectionError{
			Op:  "find bluetooth port",
			Err: fmt.Errorf("no serial port bound to %s; pair the printer first", config.Address),
		}
	}

	logger.Info("Using Bluetooth serial port",
		zap.String("address", config.Address),
		zap.String("port", port.Name),
	)

	serialConfig := DefaultSerialConfig(port.Name)
	serialConfig.ReadTimeout = config.ReadTimeout
	return NewSerialTransport(serialConfig, model.ConnectionTypeBluetooth, logger), nil
}
