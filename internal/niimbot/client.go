// internal/niimbot/client.go
package niimbot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Transport is the byte stream the client drives. Read may return fewer bytes than
// requested, including none, without that meaning end of stream.
type Transport interface {
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// ClientOptions tunes the transaction polling window.
type ClientOptions struct {
	PollRounds   int
	PollInterval time.Duration
	ReadChunk    int
	Debug        bool
}

// DefaultClientOptions returns the polling window the printers are known to answer in.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		PollRounds:   6,
		PollInterval: 100 * time.Millisecond,
		ReadChunk:    1024,
	}
}

// Client performs request/response exchanges with one printer. It owns the transport
// and the receive buffer and must not be shared between goroutines.
type Client struct {
	transport Transport
	buf       []byte
	opts      ClientOptions
	logger    *zap.Logger
}

// NewClient creates a client over transport. A nil opts uses DefaultClientOptions.
func NewClient(transport Transport, logger *zap.Logger, opts *ClientOptions) *Client {
	o := DefaultClientOptions()
	if opts != nil {
		o = *opts
		if o.PollRounds <= 0 {
			o.PollRounds = 6
		}
		if o.ReadChunk <= 0 {
			o.ReadChunk = 1024
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		transport: transport,
		opts:      o,
		logger:    logger.With(zap.String("component", "niimbot-client")),
	}
}

// Send writes a packet without waiting for any acknowledgement. An oversized
// payload is rejected before anything reaches the transport.
func (c *Client) Send(ctx context.Context, packet Packet) error {
	if err := packet.Validate(); err != nil {
		return err
	}
	frame := packet.Bytes()
	c.logFrame("send", frame)

	if err := c.transport.Write(ctx, frame); err != nil {
		if isContextError(err) {
			return err
		}
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// ReceiveAvailable performs a single transport read and returns every complete frame
// now in the buffer, in order. Incomplete trailing bytes stay buffered for the next call.
func (c *Client) ReceiveAvailable(ctx context.Context) ([]Packet, error) {
	data, err := c.transport.Read(ctx, c.opts.ReadChunk)
	if err != nil {
		if isContextError(err) {
			return nil, err
		}
		return nil, &ConnectionError{Op: "read", Err: err}
	}
	c.buf = append(c.buf, data...)

	var packets []Packet
	consumed := 0
	for len(c.buf)-consumed >= minFrameSize {
		size := int(c.buf[consumed+3]) + frameOverhead
		if len(c.buf)-consumed < size {
			break
		}

		frame := c.buf[consumed : consumed+size]
		c.logFrame("recv", frame)

		packet, err := Decode(frame)
		if err != nil {
			// The stream is out of sync; drop everything buffered.
			c.buf = c.buf[:0]
			return packets, err
		}
		packets = append(packets, packet)
		consumed += size
	}

	if consumed > 0 {
		c.buf = append(c.buf[:0], c.buf[consumed:]...)
	}
	return packets, nil
}

// Buffered returns the number of bytes waiting for the rest of their frame.
func (c *Client) Buffered() int {
	return len(c.buf)
}

// Transact sends a request and waits for the response on the request kind's
// standard offset.
func (c *Client) Transact(ctx context.Context, code RequestCode, payload []byte) (*Packet, error) {
	return c.TransactOffset(ctx, code, payload, ResponseOffset(code))
}

// TransactOffset sends a request and polls for a packet of type code+offset.
// Device-error and unsupported packets abort immediately, whatever else is in the batch.
func (c *Client) TransactOffset(ctx context.Context, code RequestCode, payload []byte, offset byte) (*Packet, error) {
	want := ResponseType(code, offset)

	if err := c.Send(ctx, NewPacket(byte(code), payload)); err != nil {
		return nil, err
	}

	for round := 0; round < c.opts.PollRounds; round++ {
		packets, err := c.ReceiveAvailable(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", code, err)
		}

		var match *Packet
		for i := range packets {
			switch packets[i].Type {
			case PacketDeviceError:
				return nil, fmt.Errorf("%s: %w", code, ErrDeviceError)
			case PacketUnsupported:
				return nil, fmt.Errorf("%s: %w", code, ErrUnsupported)
			case want:
				match = &packets[i]
			}
		}
		if match != nil {
			return match, nil
		}

		if round < c.opts.PollRounds-1 {
			if err := sleepContext(ctx, c.opts.PollInterval); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%s: %w", code, ErrNoResponse)
}

// command runs a transaction whose response payload is a single success flag.
func (c *Client) command(ctx context.Context, code RequestCode, payload []byte) (bool, error) {
	resp, err := c.Transact(ctx, code, payload)
	if err != nil {
		return false, err
	}

	ok := resp.Bool()
	if c.opts.Debug {
		c.logger.Debug("Command result",
			zap.Stringer("request", code),
			zap.Bool("success", ok),
		)
	}
	return ok, nil
}

// SetLabelDensity sets print density (1-5).
func (c *Client) SetLabelDensity(ctx context.Context, density int) (bool, error) {
	if density < 1 || density > 5 {
		return false, &ConfigurationError{Field: "density", Reason: fmt.Sprintf("%d not in 1..5", density)}
	}
	return c.command(ctx, RequestSetLabelDensity, []byte{byte(density)})
}

// SetLabelType sets the label media type (1-3).
func (c *Client) SetLabelType(ctx context.Context, labelType int) (bool, error) {
	if labelType < 1 || labelType > 3 {
		return false, &ConfigurationError{Field: "label_type", Reason: fmt.Sprintf("%d not in 1..3", labelType)}
	}
	return c.command(ctx, RequestSetLabelType, []byte{byte(labelType)})
}

func (c *Client) StartPrint(ctx context.Context) (bool, error) {
	return c.command(ctx, RequestStartPrint, []byte{0x01})
}

// EndPrint reports true once the printer has finished the job.
func (c *Client) EndPrint(ctx context.Context) (bool, error) {
	return c.command(ctx, RequestEndPrint, []byte{0x01})
}

func (c *Client) StartPagePrint(ctx context.Context) (bool, error) {
	return c.command(ctx, RequestStartPagePrint, []byte{0x01})
}

func (c *Client) EndPagePrint(ctx context.Context) (bool, error) {
	return c.command(ctx, RequestEndPagePrint, []byte{0x01})
}

func (c *Client) AllowPrintClear(ctx context.Context) (bool, error) {
	return c.command(ctx, RequestAllowPrintClear, []byte{0x01})
}

// SetDimension announces the page size in device coordinates: rows then columns.
func (c *Client) SetDimension(ctx context.Context, rows, cols int) (bool, error) {
	if rows < 0 || rows > 0xFFFF || cols < 0 || cols > 0xFFFF {
		return false, &ConfigurationError{Field: "dimension", Reason: fmt.Sprintf("%dx%d exceeds 16 bits", rows, cols)}
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], uint16(rows))
	binary.BigEndian.PutUint16(payload[2:4], uint16(cols))
	return c.command(ctx, RequestSetDimension, payload)
}

// SetQuantity sets the number of copies for the page.
func (c *Client) SetQuantity(ctx context.Context, n int) (bool, error) {
	if n < 1 || n > 0xFFFF {
		return false, &ConfigurationError{Field: "quantity", Reason: fmt.Sprintf("%d not in 1..65535", n)}
	}
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(n))
	return c.command(ctx, RequestSetQuantity, payload)
}

// Heartbeat returns the raw heartbeat response.
func (c *Client) Heartbeat(ctx context.Context) (*Packet, error) {
	return c.Transact(ctx, RequestHeartbeat, []byte{0x01})
}

// GetPrintStatus returns the raw print status response.
func (c *Client) GetPrintStatus(ctx context.Context) (*Packet, error) {
	return c.Transact(ctx, RequestGetPrintStatus, []byte{0x01})
}

// GetRFID returns the raw RFID tag response of the loaded label roll.
func (c *Client) GetRFID(ctx context.Context) (*Packet, error) {
	return c.Transact(ctx, RequestGetRFID, []byte{0x01})
}

// GetInfo queries one info field. The printer answers on GET_INFO+key, so the key
// doubles as the response offset. ok is false when the printer did not answer.
func (c *Client) GetInfo(ctx context.Context, key InfoKey) (value InfoValue, ok bool, err error) {
	resp, err := c.TransactOffset(ctx, RequestGetInfo, []byte{byte(key)}, byte(key))
	if err != nil {
		if errors.Is(err, ErrNoResponse) {
			return InfoValue{}, false, nil
		}
		return InfoValue{}, false, err
	}
	return InfoValue{Key: key, Raw: resp.Payload}, true, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	c.buf = nil
	return c.transport.Close()
}

func (c *Client) logFrame(direction string, frame []byte) {
	if !c.opts.Debug {
		return
	}
	c.logger.Debug("Frame "+direction,
		zap.String("direction", direction),
		zap.String("frame", fmt.Sprintf("% x", frame)),
	)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// sleepContext waits d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
