// internal/imaging/rotate.go
package imaging

import (
	"fmt"
	"image"

	"label-service/internal/niimbot"
)

// Rotate turns img clockwise by 0, 90, 180 or 270 degrees.
func Rotate(img *image.RGBA, degrees int) (*image.RGBA, error) {
	degrees = ((degrees % 360) + 360) % 360
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.RGBA
	switch degrees {
	case 0:
		return img, nil
	case 90:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(h-1-y, x, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
	case 180:
		out = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(w-1-x, h-1-y, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
	case 270:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(y, w-1-x, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
	default:
		return nil, &niimbot.ConfigurationError{
			Field:  "rotate",
			Reason: fmt.Sprintf("must be 0, 90, 180 or 270 degrees, got %d", degrees),
		}
	}
	return out, nil
}
