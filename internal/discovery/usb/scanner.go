// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"label-service/internal/discovery"
	"label-service/internal/model"
)

// Scanner finds USB devices that expose a serial interface
type Scanner struct {
	logger       *zap.Logger
	knownDevices *DeviceDatabase
	config       *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout time.Duration `json:"scan_timeout"`
	EnableDebug bool          `json:"enable_debug"`
}

// NewScanner creates a new USB scanner. known may be nil.
func NewScanner(logger *zap.Logger, config *Config, known *DeviceDatabase) *Scanner {
	if config == nil {
		config = &Config{ScanTimeout: 10 * time.Second}
	}
	if known == nil {
		known = NewDeviceDatabase()
	}
	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: known,
		config:       config,
	}
}

func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable checks that libusb can be initialised
func (s *Scanner) IsAvailable() bool {
	ok := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("libusb unavailable", zap.Any("reason", r))
				ok = false
			}
		}()
		usbCtx := gousb.NewContext()
		usbCtx.Close()
	}()
	return ok
}

// Scan enumerates USB devices and reports the ones that look like serial printers
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB device scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()
	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	devices, err := usbCtx.OpenDevices(s.shouldExamineDevice)
	defer s.closeAllDevices(devices)
	if err != nil {
		// Devices we lack permission for are skipped; the rest are still usable.
		s.logger.Warn("Some USB devices could not be opened", zap.Error(err))
	}

	var discovered []*discovery.DiscoveredDevice
	for _, device := range devices {
		if err := scanCtx.Err(); err != nil {
			return discovered, err
		}
		if d := s.processDevice(device); d != nil {
			discovered = append(discovered, d)
		}
	}

	s.logger.Info("USB scan completed",
		zap.Int("devices_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return discovered, nil
}

// shouldExamineDevice filters on the descriptor before opening a device
func (s *Scanner) shouldExamineDevice(desc *gousb.DeviceDesc) bool {
	if s.knownDevices.IsKnownVendor(desc.Vendor) {
		return true
	}
	return serialConfidence(desc) > 0
}

func (s *Scanner) processDevice(device *gousb.Device) *discovery.DiscoveredDevice {
	desc := device.Desc
	if desc == nil {
		return nil
	}

	d := describeDevice(desc, s.knownDevices)
	if d == nil {
		return nil
	}

	product := s.stringDescriptor("product", device.Product)
	manufacturer := s.stringDescriptor("manufacturer", device.Manufacturer)
	d.SerialNumber = s.stringDescriptor("serial", device.SerialNumber)
	d.Description = describeName(manufacturer, product, desc)

	if d.Model == "" && strings.Contains(strings.ToLower(manufacturer+" "+product), "niimbot") {
		d.Confidence = 0.9
	}
	return d
}

// describeDevice builds the discovery entry from a descriptor alone
func describeDevice(desc *gousb.DeviceDesc, known *DeviceDatabase) *discovery.DiscoveredDevice {
	confidence := serialConfidence(desc)
	var modelName string
	if info := known.GetProductInfo(desc.Vendor, desc.Product); info != nil {
		modelName = info.Model
		confidence = info.Confidence
	}
	if confidence == 0 {
		return nil
	}

	return &discovery.DiscoveredDevice{
		ConnectionType: model.ConnectionTypeUSB,
		ConnectionInfo: map[string]interface{}{
			"vendor_id":      fmt.Sprintf("0x%04X", uint16(desc.Vendor)),
			"product_id":     fmt.Sprintf("0x%04X", uint16(desc.Product)),
			"bus":            desc.Bus,
			"address":        desc.Address,
			"device_version": desc.Device.String(),
			"class":          desc.Class.String(),
		},
		Description: fmt.Sprintf("USB %04X:%04X", uint16(desc.Vendor), uint16(desc.Product)),
		Model:       modelName,
		Confidence:  confidence,
		Location:    fmt.Sprintf("USB-Bus%d-Port%d", desc.Bus, desc.Address),
	}
}

func (s *Scanner) stringDescriptor(name string, get func() (string, error)) string {
	v, err := get()
	if err != nil {
		s.logger.Debug("Failed to read string descriptor", zap.String("descriptor", name), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(v)
}

// describeName prefers product name, then manufacturer, then VID:PID
func describeName(manufacturer, product string, desc *gousb.DeviceDesc) string {
	switch {
	case product != "" && manufacturer != "":
		return manufacturer + " " + product
	case product != "":
		return product
	case manufacturer != "":
		return fmt.Sprintf("%s %04X", manufacturer, uint16(desc.Product))
	default:
		return fmt.Sprintf("USB %04X:%04X", uint16(desc.Vendor), uint16(desc.Product))
	}
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			s.logger.Warn("Failed to close USB device", zap.Int("device_index", i), zap.Error(err))
		}
	}
}
