// Package frame turns a live camera frame into a stored photo.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/tstromberg/fotobox/pkg/fotobox"
)

// Process mirrors img horizontally and applies the tonal transform for mode.
// The result has img's pixel dimensions with its origin at (0, 0).
//
// The preview the subject looks at is mirrored, so the stored photo is too.
func Process(img image.Image, mode fotobox.ColorMode) *image.RGBA {
	b := img.Bounds()
	surface := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(surface, surface.Bounds(), img, b.Min, draw.Src)

	return Tone(transform.FlipH(surface), mode)
}

// Tone applies the tonal transform for mode without mirroring.
func Tone(img image.Image, mode fotobox.ColorMode) *image.RGBA {
	fn := tonal(mode)
	if fn == nil {
		return clone.AsRGBA(img)
	}
	return adjust.Apply(img, fn)
}

// Capture processes img and encodes it as a lossless photo.
func Capture(img image.Image, mode fotobox.ColorMode) (fotobox.Photo, error) {
	return Encode(Process(img, mode))
}

// Encode stores img losslessly as a photo.
func Encode(img image.Image) (fotobox.Photo, error) {
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return fotobox.Photo(buf.Bytes()), nil
}

// tonal returns the per-pixel transform for mode, or nil for no change.
func tonal(mode fotobox.ColorMode) func(color.RGBA) color.RGBA {
	switch mode {
	case fotobox.Grayscale:
		return grayscale
	case fotobox.Sepia:
		return sepia
	case fotobox.Vintage:
		return vintage
	}
	return nil
}

// Luma uses the Rec. 601 weights.
func grayscale(c color.RGBA) color.RGBA {
	y := clamp(0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B))
	return color.RGBA{R: y, G: y, B: y, A: c.A}
}

func sepia(c color.RGBA) color.RGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.RGBA{
		R: clamp(0.393*r + 0.769*g + 0.189*b),
		G: clamp(0.349*r + 0.686*g + 0.168*b),
		B: clamp(0.272*r + 0.534*g + 0.131*b),
		A: c.A,
	}
}

// Warm reds, lifted greens, crushed blues.
func vintage(c color.RGBA) color.RGBA {
	return color.RGBA{
		R: clamp(1.1*float64(c.R) + 10),
		G: clamp(1.05*float64(c.G) + 5),
		B: clamp(0.9*float64(c.B) - 10),
		A: c.A,
	}
}

func clamp(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
