// internal/imaging/imaging_test.go
package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"label-service/internal/niimbot"
)

// halfDark returns a w x h image whose left half is black and right half white.
func halfDark(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return &buf
}

func TestLoadThresholdMarksDarkPixels(t *testing.T) {
	bm, info, err := Load(encodePNG(t, halfDark(16, 4)), Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.Format != "png" || info.Width != 16 || info.Height != 4 || info.Scaled {
		t.Fatalf("info = %+v", info)
	}
	if !bm.IsDark(0, 0) || !bm.IsDark(7, 3) {
		t.Error("black pixels not dark")
	}
	if bm.IsDark(8, 0) || bm.IsDark(15, 3) {
		t.Error("white pixels dark")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, _, err := Load(bytes.NewReader([]byte("not an image")), Options{})
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("error = %v, want ErrUnsupportedImage", err)
	}
}

// pngHeader returns the signature and IHDR chunk of a PNG declaring w x h pixels
// and nothing else.
func pngHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1))).Bytes()
	header := append([]byte(nil), data[:33]...)
	binary.BigEndian.PutUint32(header[16:20], w)
	binary.BigEndian.PutUint32(header[20:24], h)
	binary.BigEndian.PutUint32(header[29:33], crc32.ChecksumIEEE(header[12:29]))
	return header
}

func TestLoadRejectsOversizedDimensions(t *testing.T) {
	_, _, err := Load(bytes.NewReader(pngHeader(t, 40000, 40000)), Options{})
	var cfgErr *niimbot.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "image" {
		t.Fatalf("error = %v, want image ConfigurationError", err)
	}
}

func TestCheckSizeLimit(t *testing.T) {
	tests := []struct {
		name      string
		w, h      uint32
		maxPixels int
		wantErr   bool
	}{
		{"within default", 384, 240, 0, false},
		{"exactly at limit", 100, 10, 1000, false},
		{"over limit", 100, 11, 1000, true},
		{"wide strip", 1 << 20, 17, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, format, err := CheckSize(bytes.NewReader(pngHeader(t, tt.w, tt.h)), tt.maxPixels)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSize error = %v, wantErr %v", err, tt.wantErr)
			}
			if format != "png" || cfg.Width != int(tt.w) || cfg.Height != int(tt.h) {
				t.Fatalf("config = %+v format = %s", cfg, format)
			}
		})
	}
}

func TestThresholdZeroIsHonoured(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 1))
	// every pixel is pure black
	zero := uint8(0)
	bm, _, err := Convert(img, Options{Threshold: &zero})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for x := 0; x < 4; x++ {
		if bm.IsDark(x, 0) {
			t.Fatalf("pixel %d dark with threshold 0", x)
		}
	}

	bm, _, err = Convert(img, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !bm.IsDark(0, 0) {
		t.Error("default threshold did not mark black pixel")
	}
}

func TestTransparentPixelsDoNotPrint(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 1))
	img.Set(0, 0, color.NRGBA{A: 0xFF})
	// remaining pixels are fully transparent black
	bm, _, err := Convert(img, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !bm.IsDark(0, 0) {
		t.Error("opaque black pixel not dark")
	}
	for x := 1; x < 8; x++ {
		if bm.IsDark(x, 0) {
			t.Fatalf("transparent pixel %d printed", x)
		}
	}
}

func TestConvertRotates(t *testing.T) {
	// 4x2 image with only the top-left pixel black.
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.White)
		}
	}
	img.Set(0, 0, color.Black)

	tests := []struct {
		degrees      int
		w, h         int
		darkX, darkY int
	}{
		{0, 4, 2, 0, 0},
		{90, 2, 4, 1, 0},
		{180, 4, 2, 3, 1},
		{270, 2, 4, 0, 3},
		{-90, 2, 4, 0, 3},
	}

	for _, tt := range tests {
		bm, _, err := Convert(img, Options{Rotate: tt.degrees})
		if err != nil {
			t.Fatalf("rotate %d: %v", tt.degrees, err)
		}
		if bm.Width() != tt.w || bm.Height() != tt.h {
			t.Errorf("rotate %d: size %dx%d, want %dx%d", tt.degrees, bm.Width(), bm.Height(), tt.w, tt.h)
			continue
		}
		if !bm.IsDark(tt.darkX, tt.darkY) {
			t.Errorf("rotate %d: pixel (%d,%d) not dark", tt.degrees, tt.darkX, tt.darkY)
		}
	}

	if _, _, err := Convert(img, Options{Rotate: 45}); !errors.Is(err, niimbot.ErrConfiguration) {
		t.Fatalf("rotate 45 error = %v, want ErrConfiguration", err)
	}
}

func TestConvertDownscalesToMaxWidth(t *testing.T) {
	bm, info, err := Convert(halfDark(200, 51), Options{MaxWidth: 96})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !info.Scaled || bm.Width() != 96 || bm.Height() != 24 {
		t.Fatalf("size = %dx%d scaled=%v, want 96x24", bm.Width(), bm.Height(), info.Scaled)
	}
	if !bm.IsDark(10, 10) || bm.IsDark(85, 10) {
		t.Error("halves not preserved after scaling")
	}
}

func TestDitherKeepsSolidAreas(t *testing.T) {
	bm, _, err := Convert(halfDark(32, 8), Options{Dither: true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for y := 0; y < 8; y++ {
		if !bm.IsDark(2, y) {
			t.Errorf("solid black pixel (2,%d) dithered to white", y)
		}
		if bm.IsDark(29, y) {
			t.Errorf("solid white pixel (29,%d) dithered to black", y)
		}
	}
}

func TestDitherProducesMidtonePattern(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	bm, _, err := Convert(img, Options{Dither: true})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	dark := 0
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if bm.IsDark(x, y) {
				dark++
			}
		}
	}
	if dark == 0 || dark == 32*32 {
		t.Fatalf("mid gray dithered to a solid field (%d dark pixels)", dark)
	}
}

func TestScaleBitmap(t *testing.T) {
	src := niimbot.NewPixelBitmap(64, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 32; x++ {
			src.Set(x, y, true)
		}
	}
	out := ScaleBitmap(src, 32, 4)
	if out.Width() != 32 || out.Height() != 4 {
		t.Fatalf("size = %dx%d", out.Width(), out.Height())
	}
	if !out.IsDark(4, 2) || out.IsDark(28, 2) {
		t.Fatal("scaled bitmap lost its halves")
	}
}
