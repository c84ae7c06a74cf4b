// internal/discovery/serial/scanner_test.go
package serial

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"label-service/internal/discovery"
	"label-service/internal/model"
	"label-service/internal/transport"
)

func TestScanClassifiesPorts(t *testing.T) {
	lister := transport.PortListerFunc(func() ([]transport.PortInfo, error) {
		return []transport.PortInfo{
			{Name: "/dev/ttyS0", Description: "ttyS0"},
			{Name: "/dev/ttyACM0", Description: "NIIMBOT B21", IsUSB: true, VID: "1A86", PID: "7523"},
			{Name: "COM7", Description: "Standard Serial over Bluetooth link"},
		}, nil
	})

	manager := discovery.NewScannerManager(zaptest.NewLogger(t))
	manager.RegisterScanner(NewScanner(zaptest.NewLogger(t), lister))

	devices, err := manager.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}

	first := devices[0]
	if first.Address != "/dev/ttyACM0" || first.Model != "b21" || first.ConnectionType != model.ConnectionTypeUSB {
		t.Fatalf("best match = %+v", first)
	}
	if first.ConnectionInfo["vendor_id"] != "1A86" || first.Scanner != "serial" {
		t.Fatalf("connection info = %+v", first.ConnectionInfo)
	}
	if devices[1].ConnectionType != model.ConnectionTypeBluetooth || devices[1].Address != "COM7" {
		t.Fatalf("second = %+v, want the bluetooth port", devices[1])
	}
	if devices[2].Confidence >= devices[1].Confidence {
		t.Fatal("devices not ordered by confidence")
	}
}

func TestGuessModelNeedsWholeWord(t *testing.T) {
	if _, ok := guessModel("usb serial b210x adapter"); ok {
		t.Fatal("matched a model inside a longer word")
	}
	if m, ok := guessModel("niimbot d110 label printer"); !ok || m != "d110" {
		t.Fatalf("guessModel = %q, %v", m, ok)
	}
}

func TestScanByTypeUnknown(t *testing.T) {
	manager := discovery.NewScannerManager(zaptest.NewLogger(t))
	if _, err := manager.ScanByType(context.Background(), "usb"); err == nil {
		t.Fatal("expected error for unregistered scanner")
	}
	manager.RegisterScanner(NewScanner(zaptest.NewLogger(t), transport.PortListerFunc(func() ([]transport.PortInfo, error) {
		return nil, nil
	})))
	if got := manager.GetAvailableScanners(); len(got) != 1 || got[0] != "serial" {
		t.Fatalf("available = %v", got)
	}
}
