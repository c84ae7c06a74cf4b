// internal/service/discovery_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"label-service/internal/config"
	"label-service/internal/discovery"
	"label-service/internal/discovery/serial"
	"label-service/internal/discovery/usb"
	"label-service/internal/transport"
	"label-service/internal/utils"
)

// ErrScannerNotFound is returned for a scan type with no available scanner
var ErrScannerNotFound = errors.New("scanner not available")

// DiscoveryService finds candidate printers on the serial and USB buses
type DiscoveryService struct {
	lister         transport.PortLister
	scannerManager *discovery.ScannerManager
	config         *config.Config
	logger         *utils.ServiceLogger
}

// NewDiscoveryService creates a discovery service. A nil lister enumerates
// the system's serial ports.
func NewDiscoveryService(cfg *config.Config, lister transport.PortLister, logger *zap.Logger) *DiscoveryService {
	if lister == nil {
		lister = transport.SystemPorts
	}
	ds := &DiscoveryService{
		lister:         lister,
		scannerManager: discovery.NewScannerManager(logger),
		config:         cfg,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}

	ds.initializeScanners()
	return ds
}

// initializeScanners registers all available scanners
func (ds *DiscoveryService) initializeScanners() {
	ds.RegisterScanner(serial.NewScanner(ds.logger.Logger, ds.lister))

	if ds.config.Discovery.USBEnabled {
		known := usb.NewDeviceDatabase()
		for _, d := range ds.config.Discovery.USBDevices {
			vid, err := usb.ParseID(d.VendorID)
			if err != nil {
				ds.logger.Warn("Ignoring USB device entry", zap.String("vendor_id", d.VendorID), zap.Error(err))
				continue
			}
			pid, err := usb.ParseID(d.ProductID)
			if err != nil {
				ds.logger.Warn("Ignoring USB device entry", zap.String("product_id", d.ProductID), zap.Error(err))
				continue
			}
			known.AddProduct(vid, pid, &usb.ProductInfo{Model: d.Model, Confidence: 0.95})
		}

		ds.RegisterScanner(usb.NewScanner(ds.logger.Logger, &usb.Config{
			ScanTimeout: ds.config.Discovery.ScanTimeout,
			EnableDebug: ds.config.Printing.Debug,
		}, known))
	}

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
}

// RegisterScanner adds a scanner if it can run on this host
func (ds *DiscoveryService) RegisterScanner(scanner discovery.DeviceScanner) {
	if !scanner.IsAvailable() {
		ds.logger.Info("Scanner not available", zap.String("type", scanner.GetScannerType()))
		return
	}
	ds.scannerManager.RegisterScanner(scanner)
}

// ListPorts returns the enumerated serial ports
func (ds *DiscoveryService) ListPorts() ([]transport.PortInfo, error) {
	ports, err := ds.lister.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// AvailableScanners returns the registered scanner types
func (ds *DiscoveryService) AvailableScanners() []string {
	return ds.scannerManager.GetAvailableScanners()
}

// ScanDevices runs one scanner type, or all of them for "all" or ""
func (ds *DiscoveryService) ScanDevices(ctx context.Context, scanType string) ([]*discovery.DiscoveredDevice, error) {
	if ds.config.Discovery.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ds.config.Discovery.ScanTimeout)
		defer cancel()
	}

	ds.logger.Info("Starting device scan", zap.String("type", scanType))

	var devices []*discovery.DiscoveredDevice
	var err error
	switch scanType {
	case "", "all":
		devices, err = ds.scannerManager.ScanAll(ctx)
	default:
		if !slices.Contains(ds.scannerManager.GetAvailableScanners(), scanType) {
			return nil, fmt.Errorf("%w: %s", ErrScannerNotFound, scanType)
		}
		devices, err = ds.scannerManager.ScanByType(ctx, scanType)
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	ds.logger.Info("Device scan completed",
		zap.Int("devices_found", len(devices)),
		zap.String("scan_type", scanType),
	)
	return devices, nil
}
