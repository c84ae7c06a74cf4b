// internal/discovery/usb/classes.go
package usb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// USB class codes a serial-attached label printer can present
const (
	USBClassComm       gousb.Class = 0x02
	USBClassData       gousb.Class = 0x0A
	USBClassMisc       gousb.Class = 0xEF
	USBClassVendorSpec gousb.Class = 0xFF
)

// ProductInfo identifies a configured USB product
type ProductInfo struct {
	Model      string
	Confidence float64
}

// DeviceDatabase holds products registered from configuration, keyed by vendor
// and product ID.
type DeviceDatabase struct {
	products map[gousb.ID]map[gousb.ID]*ProductInfo
}

// NewDeviceDatabase creates an empty database
func NewDeviceDatabase() *DeviceDatabase {
	return &DeviceDatabase{products: make(map[gousb.ID]map[gousb.ID]*ProductInfo)}
}

// AddProduct registers a product under its vendor
func (db *DeviceDatabase) AddProduct(vendorID, productID gousb.ID, info *ProductInfo) {
	if db.products[vendorID] == nil {
		db.products[vendorID] = make(map[gousb.ID]*ProductInfo)
	}
	db.products[vendorID][productID] = info
}

// IsKnownVendor checks if any product of the vendor is registered
func (db *DeviceDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.products[vendorID]
	return exists
}

// GetProductInfo returns the registered product or nil
func (db *DeviceDatabase) GetProductInfo(vendorID, productID gousb.ID) *ProductInfo {
	return db.products[vendorID][productID]
}

// ParseID parses a vendor or product ID written as hex, with or without 0x.
func ParseID(s string) (gousb.ID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: %w", s, err)
	}
	return gousb.ID(v), nil
}

// interfaceClasses collects the classes of every interface of the active configs.
func interfaceClasses(desc *gousb.DeviceDesc) []gousb.Class {
	var classes []gousb.Class
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				classes = append(classes, alt.Class)
			}
		}
	}
	return classes
}

// serialConfidence scores how likely a device is a USB-serial printer: a CDC
// device or a composite device exposing a CDC interface.
func serialConfidence(desc *gousb.DeviceDesc) float64 {
	hasComm := desc.Class == USBClassComm
	for _, c := range interfaceClasses(desc) {
		if c == USBClassComm || c == USBClassData {
			hasComm = true
		}
	}

	switch {
	case hasComm:
		return 0.5
	case desc.Class == USBClassVendorSpec:
		// USB-serial bridge chips usually present as vendor specific
		return 0.3
	default:
		return 0
	}
}
