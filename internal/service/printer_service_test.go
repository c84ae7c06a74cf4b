// internal/service/printer_service_test.go
package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"label-service/internal/config"
	"label-service/internal/model"
	"label-service/internal/niimbot"
	"label-service/internal/repository"
	"label-service/internal/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		Printing: config.PrintingConfig{PollRounds: 6, MaxEndPrintPolls: 300},
		Printers: []config.PrinterConfig{
			{Name: "desk", Model: "b21", Connection: "usb", Address: "auto", Density: 3, LabelType: 1},
			{Name: "small", Model: "d11", Connection: "serial", Address: "/dev/ttyACM0", Density: 2, LabelType: 1},
		},
	}
}

func pngImage(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return &buf
}

type serviceFixture struct {
	service   *PrinterService
	repo      repository.JobRepository
	events    *recordingPublisher
	device    *fakePrinter
	requested []transport.Config
}

func newFixture(t *testing.T, device *fakePrinter) *serviceFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &serviceFixture{
		repo:   repository.NewMemoryJobRepository(0, logger),
		events: &recordingPublisher{},
		device: device,
	}
	factory := func(c transport.Config) (transport.Transport, error) {
		f.requested = append(f.requested, c)
		return f.device, nil
	}
	svc, err := NewPrinterService(testConfig(), f.repo, f.events, factory, logger)
	if err != nil {
		t.Fatalf("NewPrinterService: %v", err)
	}
	f.service = svc
	return f
}

func TestPrintRunsJobAndRecordsHistory(t *testing.T) {
	f := newFixture(t, &fakePrinter{})

	job, err := f.service.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: pngImage(t, 16, 4)})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if job.Status != model.JobStatusCompleted || job.Rows != 4 || job.Width != 16 {
		t.Fatalf("job = %+v", job)
	}
	if job.State != string(niimbot.StateIdle) {
		t.Errorf("final state = %s", job.State)
	}
	if job.DurationMs == nil || job.CompletedAt == nil {
		t.Error("timing not recorded")
	}

	want := []byte{0x21, 0x23, 0x01, 0x03, 0x13, 0x85, 0x85, 0x85, 0x85, 0xE3, 0xF3}
	if got := f.device.requestTypes(); !bytes.Equal(got, want) {
		t.Errorf("request types = % x, want % x", got, want)
	}
	if !f.device.closed {
		t.Error("transport not closed after job")
	}
	if len(f.requested) != 1 || f.requested[0].ConnectionType != model.ConnectionTypeUSB || f.requested[0].Address != "auto" {
		t.Errorf("transport config = %+v", f.requested)
	}

	stored, err := f.repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != model.JobStatusCompleted {
		t.Errorf("stored status = %s", stored.Status)
	}

	types := f.events.types()
	if types[0] != model.EventJobStarted || types[len(types)-1] != model.EventJobCompleted {
		t.Errorf("events = %v", types)
	}
	states := 0
	for _, et := range types {
		if et == model.EventJobState {
			states++
		}
	}
	if states != 8 {
		t.Errorf("state events = %d, want 8", states)
	}
}

func TestPrintAppliesModelPolicy(t *testing.T) {
	f := newFixture(t, &fakePrinter{})

	job, err := f.service.Print(context.Background(), &PrintRequest{
		PrinterName: "small",
		Image:       pngImage(t, 192, 20),
		Density:     5,
	})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if job.Width != 96 || job.Height != 10 || job.Density != 3 {
		t.Fatalf("job = %dx%d density %d, want 96x10 density 3", job.Width, job.Height, job.Density)
	}
	if job.Options["image_scaled"] != true {
		t.Errorf("options = %v", job.Options)
	}
}

func TestPrintFailureIsRecorded(t *testing.T) {
	device := &fakePrinter{override: map[niimbot.RequestCode][]byte{
		niimbot.RequestStartPagePrint: niimbot.Encode(niimbot.PacketDeviceError, []byte{0x00}),
	}}
	f := newFixture(t, device)

	job, err := f.service.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: pngImage(t, 8, 2)})
	if !errors.Is(err, niimbot.ErrDeviceError) {
		t.Fatalf("error = %v, want ErrDeviceError", err)
	}
	if job == nil || job.Status != model.JobStatusFailed {
		t.Fatalf("job = %+v", job)
	}
	if job.ErrorCode == nil || *job.ErrorCode != "DEVICE_ERROR" {
		t.Errorf("error code = %v", job.ErrorCode)
	}
	if job.State != string(niimbot.StatePagePrinting) {
		t.Errorf("failed state = %s", job.State)
	}
	if !device.closed {
		t.Error("transport not closed after failure")
	}
	types := f.events.types()
	if types[len(types)-1] != model.EventJobFailed {
		t.Errorf("last event = %s", types[len(types)-1])
	}
}

func TestPrintRejectsBadInputBeforeConnecting(t *testing.T) {
	f := newFixture(t, &fakePrinter{})

	_, err := f.service.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: strings.NewReader("not an image")})
	if !errors.Is(err, niimbot.ErrConfiguration) {
		t.Fatalf("garbage image error = %v", err)
	}

	_, err = f.service.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: pngImage(t, 8, 2), Rotate: 45})
	if !errors.Is(err, niimbot.ErrConfiguration) {
		t.Fatalf("bad rotation error = %v", err)
	}

	_, err = f.service.Print(context.Background(), &PrintRequest{PrinterName: "nope", Image: pngImage(t, 8, 2)})
	if !errors.Is(err, ErrPrinterNotFound) {
		t.Fatalf("unknown printer error = %v", err)
	}

	if len(f.requested) != 0 {
		t.Fatalf("%d transports created", len(f.requested))
	}
}

func TestPrintOpenFailure(t *testing.T) {
	f := newFixture(t, &fakePrinter{openErr: &niimbot.ConnectionError{Op: "open", Err: errors.New("permission denied")}})

	job, err := f.service.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: pngImage(t, 8, 2)})
	if !errors.Is(err, niimbot.ErrConnection) {
		t.Fatalf("error = %v", err)
	}
	if job.Status != model.JobStatusFailed || *job.ErrorCode != "CONNECTION_ERROR" {
		t.Fatalf("job = %+v", job)
	}
}

func TestPrintRejectsConcurrentJobOnSamePrinter(t *testing.T) {
	device := &fakePrinter{block: make(chan struct{})}
	logger := zaptest.NewLogger(t)
	started := make(chan struct{})
	factory := func(c transport.Config) (transport.Transport, error) {
		close(started)
		return device, nil
	}
	svc, err := NewPrinterService(testConfig(), repository.NewMemoryJobRepository(0, logger), nil, factory, logger)
	if err != nil {
		t.Fatalf("NewPrinterService: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: pngImage(t, 8, 1)})
		done <- err
	}()
	<-started

	if p, _ := svc.GetPrinter("desk"); !p.Busy {
		t.Error("printer not reported busy")
	}
	if _, err := svc.Print(context.Background(), &PrintRequest{PrinterName: "desk", Image: pngImage(t, 8, 1)}); !errors.Is(err, ErrPrinterBusy) {
		t.Errorf("second job error = %v, want ErrPrinterBusy", err)
	}
	if _, err := svc.Info(context.Background(), "desk"); !errors.Is(err, ErrPrinterBusy) {
		t.Errorf("info error = %v, want ErrPrinterBusy", err)
	}

	close(device.block)
	if err := <-done; err != nil {
		t.Fatalf("first job: %v", err)
	}
	if p, _ := svc.GetPrinter("desk"); p.Busy {
		t.Error("printer still busy after job")
	}
}

func TestPrinterInfo(t *testing.T) {
	f := newFixture(t, &fakePrinter{})

	info, err := f.service.Info(context.Background(), "desk")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.SoftwareVersion != "1.00" || info.HardwareVersion != "1.00" {
		t.Errorf("info = %+v", info)
	}
	if info.Battery == nil || *info.Battery != 100 {
		t.Errorf("battery = %v", info.Battery)
	}
	if !f.device.closed {
		t.Error("transport not closed after info")
	}
}

func TestListPrinters(t *testing.T) {
	f := newFixture(t, &fakePrinter{})

	printers := f.service.ListPrinters()
	if len(printers) != 2 || printers[0].Name != "desk" || printers[1].Name != "small" {
		t.Fatalf("printers = %+v", printers)
	}
	if printers[1].MaxWidth != 96 || printers[1].MaxDensity != 3 {
		t.Errorf("small = %+v", printers[1])
	}
	if _, err := f.service.GetPrinter("missing"); !errors.Is(err, ErrPrinterNotFound) {
		t.Errorf("GetPrinter error = %v", err)
	}
}

func TestNewPrinterServiceRejectsUnknownModel(t *testing.T) {
	cfg := testConfig()
	cfg.Printers[0].Model = "z9"
	logger := zaptest.NewLogger(t)
	if _, err := NewPrinterService(cfg, repository.NewMemoryJobRepository(0, logger), nil, nil, logger); !errors.Is(err, niimbot.ErrConfiguration) {
		t.Fatalf("error = %v", err)
	}
}
