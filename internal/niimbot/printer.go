// internal/niimbot/printer.go
package niimbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// JobState is a step of the print job state machine.
type JobState string

const (
	StateIdle          JobState = "idle"
	StateDensitySet    JobState = "density_set"
	StateLabelTypeSet  JobState = "label_type_set"
	StatePrinting      JobState = "printing"
	StatePagePrinting  JobState = "page_printing"
	StateRowsStreaming JobState = "rows_streaming"
	StatePageEnded     JobState = "page_ended"
	StateJobEnded      JobState = "job_ended"
)

func (s JobState) String() string { return string(s) }

// Job is one image to print.
type Job struct {
	Image     Bitmap
	Density   int
	LabelType int
	// OnState, if set, is called after each state is entered.
	OnState func(JobState)
}

// Result describes what was actually sent to the printer.
type Result struct {
	Density        int
	DensityClamped bool
	Width          int
	Height         int
	Scaled         bool
	EndPrintPolls  int
}

// Scaler resizes a bitmap to exactly width x height.
type Scaler func(bm Bitmap, width, height int) Bitmap

// PrinterOptions holds the orchestrator timing.
type PrinterOptions struct {
	SettleDelay      time.Duration
	EndPrintInterval time.Duration
	MaxEndPrintPolls int
	Scaler           Scaler
}

// DefaultPrinterOptions returns the timing used with real hardware.
func DefaultPrinterOptions() PrinterOptions {
	return PrinterOptions{
		SettleDelay:      300 * time.Millisecond,
		EndPrintInterval: 100 * time.Millisecond,
		MaxEndPrintPolls: 300,
		Scaler:           NearestScaler,
	}
}

// Printer runs print jobs for one model over a connected client.
type Printer struct {
	client *Client
	model  Model
	opts   PrinterOptions
	logger *zap.Logger
}

// NewPrinter creates an orchestrator. A nil opts uses DefaultPrinterOptions.
func NewPrinter(client *Client, model Model, logger *zap.Logger, opts *PrinterOptions) *Printer {
	o := DefaultPrinterOptions()
	if opts != nil {
		o = *opts
		if o.MaxEndPrintPolls <= 0 {
			o.MaxEndPrintPolls = 300
		}
		if o.Scaler == nil {
			o.Scaler = NearestScaler
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Printer{
		client: client,
		model:  model,
		opts:   o,
		logger: logger.With(zap.String("component", "niimbot-printer"), zap.String("model", model.Name)),
	}
}

// Model returns the printer's model profile.
func (p *Printer) Model() Model {
	return p.model
}

// Prepare validates a job and applies the model policy: density is clamped to the
// model maximum and images wider than the print head are downscaled uniformly.
func (p *Printer) Prepare(job Job) (Job, Result, error) {
	var res Result

	if job.Image == nil {
		return job, res, &ConfigurationError{Field: "image", Reason: "no image"}
	}
	if job.Density < 1 || job.Density > 5 {
		return job, res, &ConfigurationError{Field: "density", Reason: fmt.Sprintf("%d not in 1..5", job.Density)}
	}
	if job.LabelType < 1 || job.LabelType > 3 {
		return job, res, &ConfigurationError{Field: "label_type", Reason: fmt.Sprintf("%d not in 1..3", job.LabelType)}
	}

	density, clamped := p.model.ClampDensity(job.Density)
	if clamped {
		p.logger.Warn("Density exceeds model maximum, clamping",
			zap.Int("requested", job.Density),
			zap.Int("used", density),
		)
	}
	job.Density = density

	w, h, scaled := p.model.FitWidth(job.Image.Width(), job.Image.Height())
	if scaled {
		p.logger.Warn("Image wider than print head, downscaling",
			zap.Int("width", job.Image.Width()),
			zap.Int("height", job.Image.Height()),
			zap.Int("scaled_width", w),
			zap.Int("scaled_height", h),
		)
		job.Image = p.opts.Scaler(job.Image, w, h)
	}

	if job.Image.Width() > MaxRowWidth {
		return job, res, &ConfigurationError{
			Field:  "image",
			Reason: fmt.Sprintf("width %d exceeds the %d pixel row limit", job.Image.Width(), MaxRowWidth),
		}
	}
	if job.Image.Height() > 0xFFFF {
		return job, res, &ConfigurationError{Field: "image", Reason: fmt.Sprintf("height %d exceeds 65535", job.Image.Height())}
	}

	res = Result{
		Density:        density,
		DensityClamped: clamped,
		Width:          job.Image.Width(),
		Height:         job.Image.Height(),
		Scaled:         scaled,
	}
	return job, res, nil
}

// Print runs a full job. Commands are issued strictly in order; any failure or
// negative acknowledgement aborts the job with a *JobError naming the state.
func (p *Printer) Print(ctx context.Context, job Job) (Result, error) {
	job, res, err := p.Prepare(job)
	if err != nil {
		return res, err
	}

	enter := func(state JobState) {
		p.logger.Debug("Print job state", zap.Stringer("state", state))
		if job.OnState != nil {
			job.OnState(state)
		}
	}
	step := func(state JobState, cmd func(context.Context) (bool, error)) error {
		if err := ctx.Err(); err != nil {
			return &JobError{State: state, Err: err}
		}
		ok, err := cmd(ctx)
		if err != nil {
			return &JobError{State: state, Err: err}
		}
		if !ok {
			return &JobError{State: state, Err: errNotAcknowledged}
		}
		enter(state)
		return nil
	}

	steps := []struct {
		state JobState
		cmd   func(context.Context) (bool, error)
	}{
		{StateDensitySet, func(ctx context.Context) (bool, error) { return p.client.SetLabelDensity(ctx, job.Density) }},
		{StateLabelTypeSet, func(ctx context.Context) (bool, error) { return p.client.SetLabelType(ctx, job.LabelType) }},
		{StatePrinting, p.client.StartPrint},
		{StatePagePrinting, func(ctx context.Context) (bool, error) {
			ok, err := p.client.StartPagePrint(ctx)
			if err != nil || !ok {
				return ok, err
			}
			return p.client.SetDimension(ctx, res.Height, res.Width)
		}},
	}
	for _, s := range steps {
		if err := step(s.state, s.cmd); err != nil {
			return res, err
		}
	}

	enter(StateRowsStreaming)
	for packet := range EncodeRows(job.Image) {
		if err := ctx.Err(); err != nil {
			return res, &JobError{State: StateRowsStreaming, Err: err}
		}
		if err := p.client.Send(ctx, packet); err != nil {
			return res, &JobError{State: StateRowsStreaming, Err: err}
		}
	}

	if err := step(StatePageEnded, p.client.EndPagePrint); err != nil {
		return res, err
	}

	if err := sleepContext(ctx, p.opts.SettleDelay); err != nil {
		return res, &JobError{State: StatePageEnded, Err: err}
	}

	polls, err := p.awaitEndPrint(ctx)
	res.EndPrintPolls = polls
	if err != nil {
		return res, &JobError{State: StateJobEnded, Err: err}
	}
	enter(StateJobEnded)
	enter(StateIdle)

	p.logger.Info("Print job completed",
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Int("density", res.Density),
		zap.Int("end_print_polls", polls),
	)
	return res, nil
}

// errEndPrintTimeout is returned when the printer never reports the job finished.
var errEndPrintTimeout = errors.New("printer did not finish the job")

// awaitEndPrint polls END_PRINT until the printer confirms completion.
func (p *Printer) awaitEndPrint(ctx context.Context) (int, error) {
	for poll := 1; poll <= p.opts.MaxEndPrintPolls; poll++ {
		done, err := p.client.EndPrint(ctx)
		if err != nil {
			return poll, err
		}
		if done {
			return poll, nil
		}
		if err := sleepContext(ctx, p.opts.EndPrintInterval); err != nil {
			return poll, err
		}
	}
	return p.opts.MaxEndPrintPolls, fmt.Errorf("%w after %d polls: %w", errEndPrintTimeout, p.opts.MaxEndPrintPolls, ErrNoResponse)
}

// DeviceInfo is the subset of device info reported by Info.
type DeviceInfo struct {
	Serial          string                 `json:"serial,omitempty"`
	SoftwareVersion string                 `json:"software_version,omitempty"`
	HardwareVersion string                 `json:"hardware_version,omitempty"`
	Battery         *uint64                `json:"battery,omitempty"`
	Fields          map[string]interface{} `json:"fields"`
}

var deviceInfoKeys = []InfoKey{InfoDeviceSerial, InfoSoftVersion, InfoHardVersion, InfoBattery}

// Info queries serial, firmware and hardware versions and battery level. Fields the
// printer does not answer or rejects are left empty; transport failures abort.
func (p *Printer) Info(ctx context.Context, keys ...InfoKey) (*DeviceInfo, error) {
	if len(keys) == 0 {
		keys = deviceInfoKeys
	}
	info := &DeviceInfo{Fields: make(map[string]interface{}, len(keys))}

	for _, key := range keys {
		value, ok, err := p.client.GetInfo(ctx, key)
		if err != nil {
			if errors.Is(err, ErrDeviceError) || errors.Is(err, ErrUnsupported) {
				p.logger.Warn("Info field not available", zap.Stringer("key", key), zap.Error(err))
				continue
			}
			return info, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !ok {
			p.logger.Debug("Info field not answered", zap.Stringer("key", key))
			continue
		}

		info.Fields[key.String()] = value.Value()
		switch key {
		case InfoDeviceSerial:
			info.Serial = value.Hex()
		case InfoSoftVersion:
			info.SoftwareVersion = value.Version().StringFixed(2)
		case InfoHardVersion:
			info.HardwareVersion = value.Version().StringFixed(2)
		case InfoBattery:
			battery := value.Int()
			info.Battery = &battery
		}
	}
	return info, nil
}

// NearestScaler resizes by nearest-neighbour sampling.
func NearestScaler(bm Bitmap, width, height int) Bitmap {
	out := NewPixelBitmap(width, height)
	srcW, srcH := bm.Width(), bm.Height()
	if srcW == 0 || srcH == 0 {
		return out
	}
	for y := 0; y < height; y++ {
		sy := y * srcH / height
		for x := 0; x < width; x++ {
			if bm.IsDark(x*srcW/width, sy) {
				out.Set(x, y, true)
			}
		}
	}
	return out
}
