package strip

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	footerScale   = 2
	footerSpacing = 6
)

var footerInk = color.RGBA{0x44, 0x44, 0x44, 0xff}

// Annotate prints lines centered into the footer reserve of c, one below
// the other. Empty lines are skipped; lines wider than the strip are clipped.
func Annotate(c *Composite, lines ...string) {
	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil()

	var text []string
	for _, l := range lines {
		if l != "" {
			text = append(text, l)
		}
	}
	if len(text) == 0 {
		return
	}

	fr := c.Geometry.Footer()
	blockH := len(text)*lineH*footerScale + (len(text)-1)*footerSpacing
	y := fr.Min.Y + (fr.Dy()-blockH)/2

	for _, l := range text {
		d := &font.Drawer{Face: face, Src: image.NewUniform(footerInk)}
		w := d.MeasureString(l).Ceil()

		// Draw at 1x onto a transparent layer, then scale up without smoothing.
		layer := image.NewRGBA(image.Rect(0, 0, w, lineH))
		d.Dst = layer
		d.Dot = fixed.P(0, face.Metrics().Ascent.Ceil())
		d.DrawString(l)

		sw, sh := w*footerScale, lineH*footerScale
		x := fr.Min.X + (fr.Dx()-sw)/2
		xdraw.NearestNeighbor.Scale(c.Image, image.Rect(x, y, x+sw, y+sh), layer, layer.Bounds(), xdraw.Over, nil)
		y += sh + footerSpacing
	}
}
