// internal/service/fake_transport_test.go
package service

import (
	"context"
	"errors"
	"sync"

	"label-service/internal/model"
	"label-service/internal/niimbot"
	"label-service/internal/transport"
)

// fakePrinter answers every command with a positive acknowledgement and
// reports the end of the job on the first END_PRINT poll.
type fakePrinter struct {
	mu       sync.Mutex
	pending  [][]byte
	writes   [][]byte
	opened   bool
	closed   bool
	openErr  error
	override map[niimbot.RequestCode][]byte
	// block, when set, stalls the first write until it is closed.
	block chan struct{}
}

func (f *fakePrinter) Open(ctx context.Context) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakePrinter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePrinter) IsOpen() bool { return f.opened && !f.closed }

func (f *fakePrinter) Write(ctx context.Context, data []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("write on closed transport")
	}
	f.writes = append(f.writes, append([]byte(nil), data...))

	p, err := niimbot.Decode(data)
	if err != nil || p.Type == niimbot.PacketRasterRow {
		return err
	}
	code := niimbot.RequestCode(p.Type)
	if reply, ok := f.override[code]; ok {
		f.pending = append(f.pending, reply)
		return nil
	}
	if code == niimbot.RequestGetInfo {
		f.pending = append(f.pending, niimbot.Encode(byte(code)+p.Payload[0], []byte{0x00, 0x64}))
		return nil
	}
	f.pending = append(f.pending, niimbot.Encode(niimbot.ResponseType(code, niimbot.ResponseOffset(code)), []byte{0x01}))
	return nil
}

func (f *fakePrinter) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	chunk := f.pending[0]
	f.pending = f.pending[1:]
	return chunk, nil
}

func (f *fakePrinter) Type() model.ConnectionType { return model.ConnectionTypeUSB }

func (f *fakePrinter) Stats() transport.Stats { return transport.Stats{} }

func (f *fakePrinter) requestTypes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]byte, 0, len(f.writes))
	for _, w := range f.writes {
		types = append(types, w[2])
	}
	return types
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.PrintEvent
}

func (r *recordingPublisher) PublishPrintEvent(event model.PrintEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType
	}
	return types
}
