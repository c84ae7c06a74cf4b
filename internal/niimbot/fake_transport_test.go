// internal/niimbot/fake_transport_test.go
package niimbot

import (
	"context"
	"errors"
)

// fakeTransport serves queued read chunks and records writes. When respond is
// set, every written frame is decoded and the responder's frames are queued.
type fakeTransport struct {
	reads     [][]byte
	writes    [][]byte
	readCalls int
	readErr   error
	writeErr  error
	closed    bool
	respond   func(Packet) [][]byte
}

func (f *fakeTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.reads) == 0 {
		return nil, nil
	}
	chunk := f.reads[0]
	f.reads = f.reads[1:]
	return chunk, nil
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	frame := append([]byte(nil), data...)
	f.writes = append(f.writes, frame)
	if f.respond != nil {
		packet, err := Decode(frame)
		if err != nil {
			return errors.New("fake transport: client wrote a malformed frame")
		}
		f.reads = append(f.reads, f.respond(packet)...)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// writtenTypes returns the packet type of every written frame in order.
func (f *fakeTransport) writtenTypes() []byte {
	types := make([]byte, 0, len(f.writes))
	for _, w := range f.writes {
		types = append(types, w[2])
	}
	return types
}

// ackResponder answers every command with a positive acknowledgement on its standard
// offset, except for request types with a scripted queue of replies. Raster rows get
// no reply.
func ackResponder(script map[byte][][]byte) func(Packet) [][]byte {
	return func(p Packet) [][]byte {
		if p.Type == PacketRasterRow {
			return nil
		}
		if queue := script[p.Type]; len(queue) > 0 {
			script[p.Type] = queue[1:]
			return [][]byte{queue[0]}
		}
		code := RequestCode(p.Type)
		return [][]byte{Encode(ResponseType(code, ResponseOffset(code)), []byte{0x01})}
	}
}

func testClientOptions() *ClientOptions {
	return &ClientOptions{PollRounds: 6, PollInterval: 0}
}

func testPrinterOptions() *PrinterOptions {
	return &PrinterOptions{}
}

func filledBitmap(width, height int, dark bool) *PixelBitmap {
	bm := NewPixelBitmap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bm.Set(x, y, dark)
		}
	}
	return bm
}
