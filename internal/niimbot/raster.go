// internal/niimbot/raster.go
package niimbot

import (
	"encoding/binary"
	"iter"
)

// Bitmap is a monochrome image. IsDark reports pixels that should be burned.
type Bitmap interface {
	Width() int
	Height() int
	IsDark(x, y int) bool
}

const rowHeaderSize = 6

// MaxRowWidth is the widest row, in pixels, whose packet still fits MaxPayload.
const MaxRowWidth = (MaxPayload - rowHeaderSize) * 8

// EncodeRow builds the raster packet for row y:
// row index (u16 big-endian), three zero bytes, a constant 1, then the row packed
// MSB first, dark pixels as 1 bits.
func EncodeRow(bm Bitmap, y int) Packet {
	width := bm.Width()
	payload := make([]byte, rowHeaderSize+(width+7)/8)

	binary.BigEndian.PutUint16(payload[0:2], uint16(y))
	// payload[2:5] reserved, zero
	payload[5] = 1

	for x := 0; x < width; x++ {
		if bm.IsDark(x, y) {
			payload[rowHeaderSize+x/8] |= 0x80 >> (x % 8)
		}
	}

	return Packet{Type: PacketRasterRow, Payload: payload}
}

// EncodeRows yields one raster packet per row, top to bottom. Rows are encoded on
// demand and the sequence can be iterated again.
func EncodeRows(bm Bitmap) iter.Seq[Packet] {
	return func(yield func(Packet) bool) {
		for y := 0; y < bm.Height(); y++ {
			if !yield(EncodeRow(bm, y)) {
				return
			}
		}
	}
}

// PixelBitmap is a packed in-memory Bitmap, one bit per pixel, rows padded to a
// whole byte.
type PixelBitmap struct {
	width  int
	height int
	stride int
	bits   []byte
}

// NewPixelBitmap returns an all-light bitmap.
func NewPixelBitmap(width, height int) *PixelBitmap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := (width + 7) / 8
	return &PixelBitmap{
		width:  width,
		height: height,
		stride: stride,
		bits:   make([]byte, stride*height),
	}
}

func (b *PixelBitmap) Width() int  { return b.width }
func (b *PixelBitmap) Height() int { return b.height }

func (b *PixelBitmap) IsDark(x, y int) bool {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return false
	}
	return b.bits[y*b.stride+x/8]&(0x80>>(x%8)) != 0
}

// Set marks a pixel dark or light. Out of range coordinates are ignored.
func (b *PixelBitmap) Set(x, y int, dark bool) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	mask := byte(0x80 >> (x % 8))
	if dark {
		b.bits[y*b.stride+x/8] |= mask
	} else {
		b.bits[y*b.stride+x/8] &^= mask
	}
}
