// internal/niimbot/packet.go
package niimbot

import "fmt"

// Frame layout constants
const (
	frameStart    = 0x55
	frameEnd      = 0xAA
	frameOverhead = 7 // 2 start + type + len + checksum + 2 end
	minFrameSize  = 5 // enough to read the declared length
	MaxPayload    = 255
)

// Packet is a single Niimbot protocol frame.
type Packet struct {
	Type    byte
	Payload []byte
}

// NewPacket copies payload so the packet cannot be mutated through the caller's slice.
func NewPacket(packetType byte, payload []byte) Packet {
	p := make([]byte, len(payload))
	copy(p, payload)
	return Packet{Type: packetType, Payload: p}
}

// Bytes returns the wire encoding of the packet.
func (p Packet) Bytes() []byte {
	return Encode(p.Type, p.Payload)
}

// Bool interprets the first payload byte as a success flag.
func (p Packet) Bool() bool {
	return len(p.Payload) > 0 && p.Payload[0] != 0
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet(type=%#02x, payload=% x)", p.Type, p.Payload)
}

func checksum(packetType byte, payload []byte) byte {
	sum := packetType ^ byte(len(payload))
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Validate reports a payload that cannot be described by the one-byte length field.
func (p Packet) Validate() error {
	if len(p.Payload) > MaxPayload {
		return &FramingError{
			Reason: fmt.Sprintf("payload of %d bytes exceeds %d", len(p.Payload), MaxPayload),
		}
	}
	return nil
}

// Encode builds a frame. The payload must not exceed MaxPayload bytes; Validate
// first when the length is not already known to fit.
func Encode(packetType byte, payload []byte) []byte {
	frame := make([]byte, 0, frameOverhead+len(payload))
	frame = append(frame, frameStart, frameStart, packetType, byte(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, checksum(packetType, payload), frameEnd, frameEnd)
	return frame
}

// Decode parses exactly one frame. Any marker, length or checksum mismatch is a
// *FramingError; no repair is attempted.
func Decode(frame []byte) (Packet, error) {
	if len(frame) < frameOverhead {
		return Packet{}, &FramingError{Reason: "frame too short", Frame: frame}
	}
	if frame[0] != frameStart || frame[1] != frameStart {
		return Packet{}, &FramingError{Reason: "bad start marker", Frame: frame}
	}
	if frame[len(frame)-2] != frameEnd || frame[len(frame)-1] != frameEnd {
		return Packet{}, &FramingError{Reason: "bad end marker", Frame: frame}
	}

	packetType := frame[2]
	length := int(frame[3])
	if len(frame) != length+frameOverhead {
		return Packet{}, &FramingError{
			Reason: fmt.Sprintf("declared length %d does not match frame size %d", length, len(frame)),
			Frame:  frame,
		}
	}

	payload := frame[4 : 4+length]
	if want := checksum(packetType, payload); want != frame[4+length] {
		return Packet{}, &FramingError{
			Reason: fmt.Sprintf("checksum %#02x, expected %#02x", frame[4+length], want),
			Frame:  frame,
		}
	}

	return NewPacket(packetType, payload), nil
}
