// internal/service/printer_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"label-service/internal/config"
	"label-service/internal/imaging"
	"label-service/internal/model"
	"label-service/internal/niimbot"
	"label-service/internal/repository"
	"label-service/internal/transport"
	"label-service/internal/utils"
)

var (
	ErrPrinterNotFound = errors.New("printer not found")
	ErrPrinterBusy     = errors.New("printer is busy with another job")
)

// TransportFactory creates an unopened transport for a printer
type TransportFactory func(cfg transport.Config) (transport.Transport, error)

// EventPublisher receives job progress events
type EventPublisher interface {
	PublishPrintEvent(event model.PrintEvent)
}

// PrintRequest is one uploaded label image with its print settings. Zero
// Density and LabelType fall back to the printer's configured defaults.
type PrintRequest struct {
	PrinterName string
	Image       io.Reader
	Density     int
	LabelType   int
	Rotate      int
	Dither      bool
	// Threshold is nil when the caller did not choose one.
	Threshold *uint8
}

type printerEntry struct {
	config config.PrinterConfig
	model  niimbot.Model
	mu     sync.Mutex
	busy   atomic.Bool
}

// PrinterService runs print jobs and info queries against configured printers.
// Jobs on one printer are serialized; a transport is opened per job and
// closed on every exit path.
type PrinterService struct {
	printers     map[string]*printerEntry
	jobRepo      repository.JobRepository
	events       EventPublisher
	newTransport TransportFactory
	config       *config.Config
	logger       *utils.ServiceLogger
}

// NewPrinterService creates the printer service. A nil factory opens real
// serial and Bluetooth transports; events may be nil.
func NewPrinterService(
	cfg *config.Config,
	jobRepo repository.JobRepository,
	events EventPublisher,
	factory TransportFactory,
	logger *zap.Logger,
) (*PrinterService, error) {
	ps := &PrinterService{
		printers:     make(map[string]*printerEntry, len(cfg.Printers)),
		jobRepo:      jobRepo,
		events:       events,
		newTransport: factory,
		config:       cfg,
		logger:       utils.NewServiceLogger(logger, "printer-service"),
	}
	if ps.newTransport == nil {
		ps.newTransport = func(c transport.Config) (transport.Transport, error) {
			return transport.New(c, transport.SystemPorts, logger)
		}
	}

	for _, pc := range cfg.Printers {
		m, err := niimbot.LookupModel(pc.Model)
		if err != nil {
			return nil, fmt.Errorf("printer %s: %w", pc.Name, err)
		}
		ps.printers[pc.Name] = &printerEntry{config: pc, model: m}
	}

	ps.logger.Info("Printers configured", zap.Int("count", len(ps.printers)))
	return ps, nil
}

// ListPrinters returns all configured printers sorted by name
func (ps *PrinterService) ListPrinters() []model.Printer {
	printers := make([]model.Printer, 0, len(ps.printers))
	for _, entry := range ps.printers {
		printers = append(printers, entry.describe())
	}
	sort.Slice(printers, func(i, j int) bool { return printers[i].Name < printers[j].Name })
	return printers
}

// GetPrinter returns one configured printer
func (ps *PrinterService) GetPrinter(name string) (model.Printer, error) {
	entry, ok := ps.printers[name]
	if !ok {
		return model.Printer{}, fmt.Errorf("%w: %s", ErrPrinterNotFound, name)
	}
	return entry.describe(), nil
}

// Models returns the supported model table
func (ps *PrinterService) Models() []niimbot.Model {
	return niimbot.Models()
}

// Print converts the uploaded image and runs it as a job on the named
// printer. The job record is returned even when printing fails.
func (ps *PrinterService) Print(ctx context.Context, req *PrintRequest) (*model.PrintJob, error) {
	entry, ok := ps.printers[req.PrinterName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, req.PrinterName)
	}

	density := req.Density
	if density == 0 {
		density = entry.config.Density
	}
	labelType := req.LabelType
	if labelType == 0 {
		labelType = entry.config.LabelType
	}

	bitmap, imgInfo, err := imaging.Load(req.Image, imaging.Options{
		Rotate:    req.Rotate,
		Dither:    req.Dither,
		Threshold: req.Threshold,
		MaxWidth:  entry.model.MaxWidth,
		MaxPixels: ps.config.Printing.MaxImagePixels,
	})
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			return nil, &niimbot.ConfigurationError{Field: "image", Reason: err.Error()}
		}
		return nil, err
	}

	if !entry.mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrPrinterBusy, entry.config.Name)
	}
	defer entry.mu.Unlock()
	entry.busy.Store(true)
	defer entry.busy.Store(false)

	job := &model.PrintJob{
		ID:          uuid.New(),
		PrinterName: entry.config.Name,
		Model:       entry.model.Name,
		Density:     density,
		LabelType:   labelType,
		Width:       imgInfo.Width,
		Height:      imgInfo.Height,
		Status:      model.JobStatusPending,
		State:       string(niimbot.StateIdle),
		Options: model.JSONObject{
			"rotate":        req.Rotate,
			"dither":        req.Dither,
			"threshold":     thresholdValue(req.Threshold),
			"format":        imgInfo.Format,
			"source_width":  imgInfo.SourceWidth,
			"source_height": imgInfo.SourceHeight,
			"image_scaled":  imgInfo.Scaled,
		},
		CreatedAt: time.Now(),
	}
	if err := ps.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record print job: %w", err)
	}

	jobLogger := utils.NewJobLogger(ps.logger.Logger, entry.config.Name, job.ID.String())
	startedAt := time.Now()
	job.StartedAt = &startedAt
	job.Status = model.JobStatusPrinting
	ps.saveJob(job)
	ps.publish(model.EventJobStarted, job, model.JSONObject{"density": density, "label_type": labelType})
	jobLogger.Start(zap.Int("width", job.Width), zap.Int("height", job.Height), zap.Int("density", density))

	jobCtx := ctx
	if ps.config.Printing.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, ps.config.Printing.JobTimeout)
		defer cancel()
	}

	var result niimbot.Result
	printErr := ps.withPrinter(jobCtx, entry, jobLogger.Logger(), func(p *niimbot.Printer) error {
		var err error
		result, err = p.Print(jobCtx, niimbot.Job{
			Image:     bitmap,
			Density:   density,
			LabelType: labelType,
			OnState: func(state niimbot.JobState) {
				job.State = string(state)
				jobLogger.State(string(state))
				ps.publish(model.EventJobState, job, model.JSONObject{"state": string(state)})
			},
		})
		return err
	})

	completedAt := time.Now()
	durationMs := int(completedAt.Sub(startedAt).Milliseconds())
	job.CompletedAt = &completedAt
	job.DurationMs = &durationMs
	if result.Width > 0 {
		job.Density = result.Density
		job.Width = result.Width
		job.Height = result.Height
		job.Rows = result.Height
	}

	if printErr != nil {
		code := niimbot.ErrorCode(printErr)
		message := printErr.Error()
		job.Status = model.JobStatusFailed
		job.ErrorCode = &code
		job.ErrorMessage = &message
		var jobErr *niimbot.JobError
		if errors.As(printErr, &jobErr) {
			job.State = string(jobErr.State)
		}
		ps.saveJob(job)
		ps.publish(model.EventJobFailed, job, model.JSONObject{"error_code": code, "error": message, "state": job.State})
		jobLogger.Error(printErr, zap.String("error_code", code))
		return job, printErr
	}

	job.Status = model.JobStatusCompleted
	ps.saveJob(job)
	ps.publish(model.EventJobCompleted, job, model.JSONObject{
		"rows":            job.Rows,
		"density_clamped": result.DensityClamped,
		"end_print_polls": result.EndPrintPolls,
	})
	jobLogger.Success(zap.Int("rows", job.Rows), zap.Int("end_print_polls", result.EndPrintPolls))
	return job, nil
}

// Info connects to the named printer and reads its device info fields
func (ps *PrinterService) Info(ctx context.Context, name string) (*niimbot.DeviceInfo, error) {
	entry, ok := ps.printers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, name)
	}
	if !entry.mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrPrinterBusy, name)
	}
	defer entry.mu.Unlock()

	var info *niimbot.DeviceInfo
	err := ps.withPrinter(ctx, entry, ps.logger.Logger, func(p *niimbot.Printer) error {
		var err error
		info, err = p.Info(ctx)
		return err
	})
	return info, err
}

// withPrinter opens a transport for entry, runs fn and closes the transport
func (ps *PrinterService) withPrinter(ctx context.Context, entry *printerEntry, logger *zap.Logger, fn func(*niimbot.Printer) error) error {
	pc := entry.config
	printerLogger := utils.NewPrinterLogger(logger, pc.Name, entry.model.Name, string(pc.ConnectionType()))

	t, err := ps.newTransport(transport.Config{
		ConnectionType: pc.ConnectionType(),
		Address:        pc.Address,
		BaudRate:       pc.BaudRate,
		ReadTimeout:    ps.config.Printing.ReadTimeout,
	})
	if err != nil {
		printerLogger.LogConnection("create", false, err)
		return err
	}

	if err := t.Open(ctx); err != nil {
		printerLogger.LogConnection("open", false, err)
		return err
	}
	printerLogger.LogConnection("open", true, nil)

	client := niimbot.NewClient(t, printerLogger.Logger, &niimbot.ClientOptions{
		PollRounds:   ps.config.Printing.PollRounds,
		PollInterval: ps.config.Printing.PollInterval,
		Debug:        ps.config.Printing.Debug,
	})
	defer func() {
		if err := client.Close(); err != nil {
			printerLogger.LogConnection("close", false, err)
			return
		}
		printerLogger.Debug("Transport closed", zap.Any("stats", t.Stats()))
	}()

	printer := niimbot.NewPrinter(client, entry.model, printerLogger.Logger, &niimbot.PrinterOptions{
		SettleDelay:      ps.config.Printing.SettleDelay,
		EndPrintInterval: ps.config.Printing.EndPrintInterval,
		MaxEndPrintPolls: ps.config.Printing.MaxEndPrintPolls,
		Scaler:           imaging.ScaleBitmap,
	})
	return fn(printer)
}

// saveJob persists job progress; failures are logged and do not fail the job
func (ps *PrinterService) saveJob(job *model.PrintJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ps.jobRepo.Update(ctx, job); err != nil {
		ps.logger.Error("Failed to update print job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

func (ps *PrinterService) publish(eventType model.EventType, job *model.PrintJob, data model.JSONObject) {
	if ps.events == nil {
		return
	}
	ps.events.PublishPrintEvent(model.NewPrintEvent(eventType, job, data))
}

func (e *printerEntry) describe() model.Printer {
	return model.Printer{
		Name:           e.config.Name,
		Model:          e.model.Name,
		ConnectionType: e.config.ConnectionType(),
		Address:        e.config.Address,
		Density:        e.config.Density,
		LabelType:      e.config.LabelType,
		MaxWidth:       e.model.MaxWidth,
		MaxDensity:     e.model.MaxDensity,
		Busy:           e.busy.Load(),
	}
}

func thresholdValue(t *uint8) int {
	if t == nil {
		return imaging.DefaultThreshold
	}
	return int(*t)
}
