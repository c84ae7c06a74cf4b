// internal/niimbot/client_test.go
package niimbot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestReceiveAvailableExtractsFramesInOrder(t *testing.T) {
	first := Encode(0x22, []byte{0x01})
	second := Encode(0x33, []byte{0x01, 0x02})
	ft := &fakeTransport{reads: [][]byte{append(append([]byte(nil), first...), second...)}}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	packets, err := c.ReceiveAvailable(context.Background())
	if err != nil {
		t.Fatalf("ReceiveAvailable: %v", err)
	}
	if len(packets) != 2 || packets[0].Type != 0x22 || packets[1].Type != 0x33 {
		t.Fatalf("packets = %v", packets)
	}
	if c.Buffered() != 0 {
		t.Fatalf("buffer holds %d stale bytes", c.Buffered())
	}
}

func TestReceiveAvailableKeepsPartialFrame(t *testing.T) {
	frame := Encode(0x34, []byte{0x01})
	ft := &fakeTransport{reads: [][]byte{frame[:4], frame[4:]}}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	packets, err := c.ReceiveAvailable(context.Background())
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if len(packets) != 0 {
		t.Fatalf("got %d packets from a partial frame", len(packets))
	}
	if c.Buffered() != 4 {
		t.Fatalf("buffered = %d, want 4", c.Buffered())
	}

	packets, err = c.ReceiveAvailable(context.Background())
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(packets) != 1 || packets[0].Type != 0x34 {
		t.Fatalf("packets = %v", packets)
	}
	if c.Buffered() != 0 {
		t.Fatalf("buffered = %d after full frame", c.Buffered())
	}
}

func TestReceiveAvailableClearsBufferOnCorruptFrame(t *testing.T) {
	bad := Encode(0x22, []byte{0x01})
	bad[5] ^= 0xFF
	ft := &fakeTransport{reads: [][]byte{bad}}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	_, err := c.ReceiveAvailable(context.Background())
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("error = %v, want ErrFraming", err)
	}
	if c.Buffered() != 0 {
		t.Fatalf("buffer not cleared, %d bytes left", c.Buffered())
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	ft := &fakeTransport{respond: ackResponder(nil)}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())
	ctx := context.Background()

	if err := c.Send(ctx, NewPacket(0x85, make([]byte, 256))); !errors.Is(err, ErrFraming) {
		t.Fatalf("Send error = %v, want ErrFraming", err)
	}
	if _, err := c.TransactOffset(ctx, RequestHeartbeat, make([]byte, 300), 1); !errors.Is(err, ErrFraming) {
		t.Fatalf("TransactOffset error = %v, want ErrFraming", err)
	}
	if len(ft.writes) != 0 || ft.readCalls != 0 {
		t.Fatalf("transport used: %d writes, %d reads", len(ft.writes), ft.readCalls)
	}
}

func TestResponseOffset(t *testing.T) {
	tests := []struct {
		code RequestCode
		want byte
	}{
		{RequestStartPrint, 1},
		{RequestStartPagePrint, 1},
		{RequestSetDimension, 1},
		{RequestSetQuantity, 1},
		{RequestGetRFID, 1},
		{RequestAllowPrintClear, 16},
		{RequestSetLabelDensity, 16},
		{RequestSetLabelType, 16},
		{RequestGetPrintStatus, 16},
		{RequestHeartbeat, 1},
		{RequestEndPagePrint, 1},
		{RequestEndPrint, 1},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := ResponseOffset(tt.code); got != tt.want {
				t.Fatalf("ResponseOffset = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusCommandsWaitOnTheirResponseType(t *testing.T) {
	tests := []struct {
		name     string
		respType byte
		call     func(*Client) (*Packet, error)
	}{
		{"allow print clear", 0x30, func(c *Client) (*Packet, error) {
			ok, err := c.AllowPrintClear(context.Background())
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.New("negative acknowledgement")
			}
			return &Packet{Type: 0x30}, nil
		}},
		{"get print status", 0xB3, func(c *Client) (*Packet, error) { return c.GetPrintStatus(context.Background()) }},
		{"get rfid", 0x1B, func(c *Client) (*Packet, error) { return c.GetRFID(context.Background()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// code+1 arrives first and must be ignored unless it is the expected type.
			ft := &fakeTransport{respond: func(p Packet) [][]byte {
				return [][]byte{append(Encode(p.Type+1, []byte{0x00}), Encode(tt.respType, []byte{0x01})...)}
			}}
			c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

			resp, err := tt.call(c)
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if resp.Type != tt.respType {
				t.Fatalf("response type = %#02x, want %#02x", resp.Type, tt.respType)
			}
		})
	}
}

func TestPrintStatusIgnoresNextCodeResponse(t *testing.T) {
	ft := &fakeTransport{respond: func(p Packet) [][]byte {
		return [][]byte{Encode(p.Type+1, []byte{0x01})}
	}}
	c := NewClient(ft, zaptest.NewLogger(t), &ClientOptions{PollRounds: 2})

	if _, err := c.GetPrintStatus(context.Background()); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("error = %v, want ErrNoResponse", err)
	}
	if _, err := c.AllowPrintClear(context.Background()); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("error = %v, want ErrNoResponse", err)
	}
}

func TestTransactSplitResponseNeedsTwoReads(t *testing.T) {
	// SET_LABEL_TYPE answers on 0x23 + 16.
	resp := Encode(0x33, []byte{0x01})
	ft := &fakeTransport{reads: [][]byte{resp[:3], resp[3:]}}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	ok, err := c.SetLabelType(context.Background(), 1)
	if err != nil {
		t.Fatalf("SetLabelType: %v", err)
	}
	if !ok {
		t.Fatal("SetLabelType = false, want true")
	}
	if ft.readCalls != 2 {
		t.Fatalf("read calls = %d, want 2", ft.readCalls)
	}
}

func TestTransactSentinelsWinOverMatch(t *testing.T) {
	tests := []struct {
		name     string
		sentinel byte
		want     error
	}{
		{"device error", PacketDeviceError, ErrDeviceError},
		{"unsupported", PacketUnsupported, ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := append(Encode(0x02, []byte{0x01}), Encode(tt.sentinel, []byte{0x00})...)
			ft := &fakeTransport{reads: [][]byte{batch}}
			c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

			_, err := c.StartPrint(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransactNoResponseAfterPollWindow(t *testing.T) {
	// An unrelated packet must not satisfy the transaction.
	ft := &fakeTransport{reads: [][]byte{Encode(0x99, []byte{0x01})}}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	_, err := c.EndPagePrint(context.Background())
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("error = %v, want ErrNoResponse", err)
	}
	if ft.readCalls != 6 {
		t.Fatalf("read calls = %d, want 6", ft.readCalls)
	}
}

func TestTransactWrapsTransportFailures(t *testing.T) {
	ft := &fakeTransport{writeErr: io.ErrClosedPipe}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	_, err := c.StartPrint(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("error = %v, want ErrConnection", err)
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Op != "write" || !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("error = %#v, want write ConnectionError wrapping io.ErrClosedPipe", err)
	}

	ft = &fakeTransport{readErr: io.EOF}
	c = NewClient(ft, zaptest.NewLogger(t), testClientOptions())
	if _, err := c.StartPrint(context.Background()); !errors.Is(err, ErrConnection) {
		t.Fatalf("read failure = %v, want ErrConnection", err)
	}
}

func TestCommandArgumentValidation(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	calls := map[string]func() (bool, error){
		"density 0":      func() (bool, error) { return c.SetLabelDensity(ctx, 0) },
		"density 6":      func() (bool, error) { return c.SetLabelDensity(ctx, 6) },
		"label type 0":   func() (bool, error) { return c.SetLabelType(ctx, 0) },
		"label type 4":   func() (bool, error) { return c.SetLabelType(ctx, 4) },
		"quantity 0":     func() (bool, error) { return c.SetQuantity(ctx, 0) },
		"rows too large": func() (bool, error) { return c.SetDimension(ctx, 70000, 10) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			_, err := call()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("error = %v, want ErrConfiguration", err)
			}
		})
	}
	if len(ft.writes) != 0 {
		t.Fatalf("%d frames written for invalid arguments", len(ft.writes))
	}
}

func TestSetDimensionPayload(t *testing.T) {
	ft := &fakeTransport{respond: ackResponder(nil)}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())

	if _, err := c.SetDimension(context.Background(), 240, 384); err != nil {
		t.Fatalf("SetDimension: %v", err)
	}
	p, err := Decode(ft.writes[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []byte{0x00, 0xF0, 0x01, 0x80}
	if p.Type != byte(RequestSetDimension) || !bytes.Equal(p.Payload, want) {
		t.Fatalf("request = %v, want SET_DIMENSION % x", p, want)
	}
}

func TestGetInfoDecoding(t *testing.T) {
	ft := &fakeTransport{respond: func(p Packet) [][]byte {
		switch InfoKey(p.Payload[0]) {
		case InfoDeviceSerial:
			return [][]byte{Encode(0x40+11, []byte{0x12, 0xAB, 0x00, 0x7F})}
		case InfoSoftVersion:
			return [][]byte{Encode(0x40+9, []byte{0x01, 0x2C})}
		case InfoBattery:
			return [][]byte{Encode(0x40+10, []byte{0x04})}
		}
		return nil
	}}
	c := NewClient(ft, zaptest.NewLogger(t), testClientOptions())
	ctx := context.Background()

	serial, ok, err := c.GetInfo(ctx, InfoDeviceSerial)
	if err != nil || !ok {
		t.Fatalf("GetInfo serial: ok=%v err=%v", ok, err)
	}
	if got := serial.Value(); got != "12ab007f" {
		t.Errorf("serial = %v, want 12ab007f", got)
	}

	version, ok, err := c.GetInfo(ctx, InfoSoftVersion)
	if err != nil || !ok {
		t.Fatalf("GetInfo version: ok=%v err=%v", ok, err)
	}
	if got := version.Version().StringFixed(2); got != "3.00" {
		t.Errorf("version = %s, want 3.00", got)
	}

	battery, ok, err := c.GetInfo(ctx, InfoBattery)
	if err != nil || !ok {
		t.Fatalf("GetInfo battery: ok=%v err=%v", ok, err)
	}
	if got := battery.Value(); got != uint64(4) {
		t.Errorf("battery = %v, want 4", got)
	}

	_, ok, err = c.GetInfo(ctx, InfoHardVersion)
	if err != nil {
		t.Fatalf("GetInfo missing field: %v", err)
	}
	if ok {
		t.Error("missing field reported as present")
	}
}

func TestDebugFrameLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ft := &fakeTransport{respond: ackResponder(nil)}
	c := NewClient(ft, zap.New(core), &ClientOptions{PollRounds: 1, Debug: true})

	if _, err := c.StartPrint(context.Background()); err != nil {
		t.Fatalf("StartPrint: %v", err)
	}

	sent := logs.FilterMessage("Frame send").All()
	if len(sent) != 1 {
		t.Fatalf("got %d send log entries, want 1", len(sent))
	}
	if got := sent[0].ContextMap()["frame"]; got != "55 55 01 01 01 01 aa aa" {
		t.Errorf("frame field = %v", got)
	}
	if logs.FilterMessage("Frame recv").Len() != 1 {
		t.Error("received frame not logged")
	}
}

func TestDebugLoggingOffByDefault(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ft := &fakeTransport{respond: ackResponder(nil)}
	c := NewClient(ft, zap.New(core), testClientOptions())

	if _, err := c.StartPrint(context.Background()); err != nil {
		t.Fatalf("StartPrint: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("got %d log entries with debug off", logs.Len())
	}
}
