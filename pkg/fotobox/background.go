package fotobox

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Background is either a solid color or an image reference, never both.
// The zero value is an empty solid color, which renders white.
type Background struct {
	color string
	image string
}

// SolidColor returns a background filled with a hex color such as "#e3f2fd".
func SolidColor(hex string) Background {
	return Background{color: hex}
}

// ImageBackground returns a background painted from an image file.
func ImageBackground(path string) Background {
	return Background{image: path}
}

// Color returns the hex color, or "" when an image is active.
func (b Background) Color() string { return b.color }

// Image returns the image path, or "" when a solid color is active.
func (b Background) Image() string { return b.image }

// IsImage reports whether the background is an image reference.
func (b Background) IsImage() bool { return b.image != "" }

func (b Background) String() string {
	if b.IsImage() {
		return "image:" + b.image
	}
	return "color:" + b.color
}

// ParseHex parses #rgb, #rrggbb and #rrggbbaa colors.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}

	c := color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	r, g, bb, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bb >> 8), A: uint8(a >> 8)}, nil
}
