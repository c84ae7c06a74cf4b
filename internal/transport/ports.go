// internal/transport/ports.go
package transport

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// AutoPort asks ResolvePort to pick the only available port.
const AutoPort = "auto"

// ErrNoPorts is returned when auto-detection finds no serial port.
var ErrNoPorts = errors.New("no serial ports found")

// AmbiguousPortError is returned when auto-detection finds more than one port.
type AmbiguousPortError struct {
	Candidates []PortInfo
}

func (e *AmbiguousPortError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf("multiple serial ports found (%s), specify one explicitly", strings.Join(names, ", "))
}

// PortInfo describes an enumerated serial port
type PortInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	HardwareID   string `json:"hardware_id"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	IsUSB        bool   `json:"is_usb"`
}

// PortLister enumerates serial ports
type PortLister interface {
	ListPorts() ([]PortInfo, error)
}

// PortListerFunc adapts a function to PortLister
type PortListerFunc func() ([]PortInfo, error)

func (f PortListerFunc) ListPorts() ([]PortInfo, error) { return f() }

// SystemPorts lists the ports of this machine
var SystemPorts PortLister = PortListerFunc(ListPorts)

// ListPorts enumerates serial ports with their USB details, sorted by name.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Name:         d.Name,
			Description:  d.Product,
			SerialNumber: d.SerialNumber,
			IsUSB:        d.IsUSB,
		}
		if d.IsUSB {
			info.VID = strings.ToUpper(d.VID)
			info.PID = strings.ToUpper(d.PID)
			info.HardwareID = fmt.Sprintf("USB VID:PID=%s:%s", info.VID, info.PID)
			if d.SerialNumber != "" {
				info.HardwareID += " SER=" + d.SerialNumber
			}
		}
		if info.Description == "" {
			info.Description = d.Name
		}
		ports = append(ports, info)
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// ResolvePort returns requested unchanged unless it is empty or "auto", in which
// case the single enumerated port is used. Zero ports yield ErrNoPorts and several
// yield *AmbiguousPortError listing them.
func ResolvePort(lister PortLister, requested string) (string, error) {
	if requested != "" && !strings.EqualFold(requested, AutoPort) {
		return requested, nil
	}

	ports, err := lister.ListPorts()
	if err != nil {
		return "", err
	}

	switch len(ports) {
	case 0:
		return "", ErrNoPorts
	case 1:
		return ports[0].Name, nil
	default:
		return "", &AmbiguousPortError{Candidates: ports}
	}
}

// NormalizeMAC upper-cases a Bluetooth address and accepts '-' separators.
// It returns false unless the result is six colon-separated hex octets.
func NormalizeMAC(mac string) (string, bool) {
	mac = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(mac), "-", ":"))
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return "", false
	}
	for _, p := range parts {
		if len(p) != 2 || strings.Trim(p, "0123456789ABCDEF") != "" {
			return "", false
		}
	}
	return mac, true
}

// FindBluetoothPort picks the virtual serial port bound to a Bluetooth address.
// A port whose hardware ID or serial number carries the full address wins; failing
// that, a port described as Bluetooth whose hardware ID contains the last six hex
// digits of the address is used.
func FindBluetoothPort(ports []PortInfo, mac string) (PortInfo, bool) {
	normalized, ok := NormalizeMAC(mac)
	if !ok {
		return PortInfo{}, false
	}
	compact := strings.ReplaceAll(normalized, ":", "")
	suffix := compact[len(compact)-6:]

	for _, p := range ports {
		hwid := strings.ToUpper(p.HardwareID)
		serial := strings.ToUpper(p.SerialNumber)
		if strings.Contains(hwid, compact) || strings.Contains(hwid, normalized) ||
			strings.Contains(serial, compact) || strings.Contains(serial, normalized) {
			return p, true
		}
	}

	for _, p := range ports {
		if !strings.Contains(strings.ToLower(p.Description), "bluetooth") {
			continue
		}
		if strings.Contains(strings.ToUpper(p.HardwareID), suffix) {
			return p, true
		}
	}

	return PortInfo{}, false
}
