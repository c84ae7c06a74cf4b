// internal/imaging/imaging.go
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makeworld-the-better-one/dither/v2"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"label-service/internal/niimbot"
)

// DefaultThreshold is the gray level below which a pixel prints when dithering is off.
const DefaultThreshold = 128

// DefaultMaxPixels bounds the decoded size of an upload (4096x4096).
const DefaultMaxPixels = 4096 * 4096

// ErrUnsupportedImage is returned for data that is not a decodable PNG, JPEG, GIF or BMP.
var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// Options controls the conversion of an uploaded image into a printable bitmap
type Options struct {
	// Rotate is a clockwise rotation in degrees: 0, 90, 180 or 270.
	Rotate int
	// Dither selects Floyd-Steinberg error diffusion instead of a fixed threshold.
	Dither bool
	// Threshold overrides DefaultThreshold. Zero is a valid threshold, so nil means unset.
	Threshold *uint8
	// MaxWidth, when positive, downscales wider images to this width.
	MaxWidth int
	// MaxPixels rejects images whose declared width*height is larger. Zero uses DefaultMaxPixels.
	MaxPixels int
}

// Info describes a conversion
type Info struct {
	Format       string `json:"format"`
	SourceWidth  int    `json:"source_width"`
	SourceHeight int    `json:"source_height"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Scaled       bool   `json:"scaled"`
}

// Decode reads a PNG, JPEG, GIF or BMP image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// CheckSize reads only the image header and rejects dimensions above maxPixels
// with a *niimbot.ConfigurationError.
func CheckSize(r io.Reader, maxPixels int) (image.Config, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return cfg, format, &niimbot.ConfigurationError{
			Field:  "image",
			Reason: fmt.Sprintf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels),
		}
	}
	return cfg, format, nil
}

// Load decodes r and converts it with opts. The header is checked against
// opts.MaxPixels before any pixel data is decoded.
func Load(r io.Reader, opts Options) (*niimbot.PixelBitmap, Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to read image: %w", err)
	}
	if _, _, err := CheckSize(bytes.NewReader(data), opts.MaxPixels); err != nil {
		return nil, Info{}, err
	}

	img, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, err
	}
	bm, info, err := Convert(img, opts)
	info.Format = format
	return bm, info, err
}

// Convert rotates, downscales and binarizes img. Dark pixels become set bits.
func Convert(img image.Image, opts Options) (*niimbot.PixelBitmap, Info, error) {
	info := Info{SourceWidth: img.Bounds().Dx(), SourceHeight: img.Bounds().Dy()}

	rotated, err := Rotate(Flatten(img), opts.Rotate)
	if err != nil {
		return nil, info, err
	}

	var scaled image.Image = rotated
	if opts.MaxWidth > 0 && rotated.Bounds().Dx() > opts.MaxWidth {
		scaled = Downscale(rotated, opts.MaxWidth)
		info.Scaled = true
	}

	gray := toGray(scaled)
	var bm *niimbot.PixelBitmap
	if opts.Dither {
		bm = ditherBitmap(gray)
	} else {
		threshold := uint8(DefaultThreshold)
		if opts.Threshold != nil {
			threshold = *opts.Threshold
		}
		bm = thresholdBitmap(gray, threshold)
	}

	info.Width = bm.Width()
	info.Height = bm.Height()
	return bm, info, nil
}

// Flatten composites img over a white background so transparent areas do not print.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Over)
	return out
}

// Downscale resizes img uniformly to width using Catmull-Rom resampling.
// The height is floored and never less than one pixel.
func Downscale(img image.Image, width int) image.Image {
	b := img.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(out, out.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Over, nil)
	return out
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return gray
}

func thresholdBitmap(gray *image.Gray, threshold uint8) *niimbot.PixelBitmap {
	b := gray.Bounds()
	bm := niimbot.NewPixelBitmap(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if gray.GrayAt(x, y).Y < threshold {
				bm.Set(x, y, true)
			}
		}
	}
	return bm
}

func ditherBitmap(gray *image.Gray) *niimbot.PixelBitmap {
	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true
	paletted := ditherer.DitherPaletted(gray)

	black := uint8(paletted.Palette.Index(color.Black))
	b := paletted.Bounds()
	bm := niimbot.NewPixelBitmap(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if paletted.ColorIndexAt(b.Min.X+x, b.Min.Y+y) == black {
				bm.Set(x, y, true)
			}
		}
	}
	return bm
}

// ScaleBitmap is a niimbot.Scaler that resamples through gray levels with
// Catmull-Rom and re-thresholds, keeping thin strokes better than nearest-neighbour.
func ScaleBitmap(bm niimbot.Bitmap, width, height int) niimbot.Bitmap {
	src := image.NewGray(image.Rect(0, 0, bm.Width(), bm.Height()))
	for y := 0; y < bm.Height(); y++ {
		for x := 0; x < bm.Width(); x++ {
			if bm.IsDark(x, y) {
				src.SetGray(x, y, color.Gray{Y: 0})
			} else {
				src.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return thresholdBitmap(dst, DefaultThreshold)
}
