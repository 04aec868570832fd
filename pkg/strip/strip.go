// Package strip renders captured photos into the final composite image.
package strip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/fotobox"
)

const (
	// Padding is the gap between cells and around the cell block.
	Padding = 20
	// FooterReserve is the space left free below the cells for the date and branding.
	FooterReserve = 100

	shadowBlur    = 10
	shadowOffsetY = 5
)

// ErrImageLoad is wrapped by every background or photo decode failure.
var ErrImageLoad = errors.New("image load failed")

var (
	white       = color.RGBA{0xff, 0xff, 0xff, 0xff}
	shadowColor = color.RGBA{0, 0, 0, 77} // black at 30%
)

// Geometry is the pixel layout of a composite.
type Geometry struct {
	CellWidth  int
	CellHeight int
	Columns    int
	Rows       int
	Width      int
	Height     int
	StartX     int
	StartY     int
}

// Measure returns the geometry for l. Two-column layouts use smaller cells.
func Measure(l fotobox.LayoutSpec) Geometry {
	g := Geometry{CellWidth: 400, CellHeight: 300, Columns: l.Columns, Rows: l.Rows}
	if l.Columns == 2 {
		g.CellWidth, g.CellHeight = 250, 250
	}

	g.Width = l.Columns*g.CellWidth + (l.Columns+1)*Padding
	g.Height = l.Rows*g.CellHeight + (l.Rows+1)*Padding + FooterReserve

	blockW := l.Columns*g.CellWidth + (l.Columns-1)*Padding
	blockH := l.Rows*g.CellHeight + (l.Rows-1)*Padding
	g.StartX = (g.Width - blockW) / 2
	g.StartY = (g.Height - blockH - FooterReserve) / 2
	return g
}

// Cell returns the rectangle of the photo at index i.
func (g Geometry) Cell(i int) image.Rectangle {
	col, row := i%g.Columns, i/g.Columns
	x := g.StartX + col*(g.CellWidth+Padding)
	y := g.StartY + row*(g.CellHeight+Padding)
	return image.Rect(x, y, x+g.CellWidth, y+g.CellHeight)
}

// Footer returns the reserved rectangle below the cells.
func (g Geometry) Footer() image.Rectangle {
	return image.Rect(0, g.Height-FooterReserve, g.Width, g.Height)
}

// Options tune how a composite is rendered.
type Options struct {
	// Open loads a background image; imgio.Open when nil.
	Open func(path string) (image.Image, error)
}

// Render draws photos onto a new canvas for layout l over bg.
//
// Every image is decoded before anything is drawn, and Render returns only
// once the background and all photos are on the canvas. A background that
// fails to load is replaced by white; a photo that fails to load leaves its
// cell showing the background and is listed in Composite.Missing.
func Render(ctx context.Context, l fotobox.LayoutSpec, photos []fotobox.Photo, bg fotobox.Background, opts Options) (*Composite, error) {
	if len(photos) > l.ShotCount {
		return nil, fmt.Errorf("%d photos for %d cells: %w", len(photos), l.ShotCount, fotobox.ErrSessionFull)
	}
	open := opts.Open
	if open == nil {
		open = imgio.Open
	}

	g := Measure(l)
	klog.V(1).Infof("rendering %s: %dx%d, %d photos, %s", l, g.Width, g.Height, len(photos), bg)

	var bgImg image.Image
	var bgErr error
	imgs := make([]image.Image, len(photos))
	errs := make([]error, len(photos))

	eg, ctx := errgroup.WithContext(ctx)
	if bg.IsImage() {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bgImg, bgErr = open(bg.Image())
			return nil
		})
	}
	for i, p := range photos {
		i, p := i, p
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			imgs[i], _, errs[i] = image.Decode(bytes.NewReader(p))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}

	c := &Composite{Image: image.NewRGBA(image.Rect(0, 0, g.Width, g.Height)), Layout: l, Geometry: g}

	if bgErr != nil {
		klog.Warningf("background %s: %v; using white", bg.Image(), bgErr)
		c.Fallback = true
		c.Errors = append(c.Errors, fmt.Errorf("background %s: %w: %v", bg.Image(), ErrImageLoad, bgErr))
	}
	if err := paintBackground(c.Image, bg, bgImg); err != nil {
		klog.Warningf("background: %v; using white", err)
		c.Fallback = true
		c.Errors = append(c.Errors, err)
	}

	for i, err := range errs {
		if err != nil {
			klog.Warningf("photo %d: %v", i, err)
			c.Missing = append(c.Missing, i)
			c.Errors = append(c.Errors, fmt.Errorf("photo %d: %w: %v", i, ErrImageLoad, err))
		}
	}

	drawShadows(c.Image, g, imgs)
	for i, img := range imgs {
		if img == nil {
			continue
		}
		cell := g.Cell(i)
		scaled := transform.Resize(img, cell.Dx(), cell.Dy(), transform.Linear)
		draw.Draw(c.Image, cell, scaled, image.Point{}, draw.Over)
	}
	return c, nil
}

// paintBackground fills dst with bg. img is the decoded background image, or
// nil for a solid color or a failed load. The canvas is white underneath in
// every case, so a translucent or broken background never leaves it bare.
func paintBackground(dst *image.RGBA, bg fotobox.Background, img image.Image) error {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	if bg.IsImage() {
		if img != nil {
			cover(dst, img)
		}
		return nil
	}

	if bg.Color() == "" {
		return nil
	}
	c, err := fotobox.ParseHex(bg.Color())
	if err != nil {
		return fmt.Errorf("background color: %w", err)
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Over)
	return nil
}

// cover scales img to fill dst completely, preserving its aspect ratio and
// cropping the overflow evenly on both sides.
func cover(dst *image.RGBA, img image.Image) {
	W, H := float64(dst.Bounds().Dx()), float64(dst.Bounds().Dy())
	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	if w == 0 || h == 0 {
		return
	}

	scale := math.Max(W/w, H/h)
	bw, bh := w*scale, h*scale
	bx, by := (W-bw)/2, (H-bh)/2

	r := image.Rect(
		int(math.Floor(bx)), int(math.Floor(by)),
		int(math.Ceil(bx+bw)), int(math.Ceil(by+bh)),
	)
	xdraw.CatmullRom.Scale(dst, r, img, img.Bounds(), xdraw.Over, nil)
}

// drawShadows blurs a soft shadow under every cell that has a photo.
func drawShadows(dst *image.RGBA, g Geometry, imgs []image.Image) {
	layer := image.NewRGBA(dst.Bounds())
	found := false
	for i, img := range imgs {
		if img == nil {
			continue
		}
		found = true
		r := g.Cell(i).Add(image.Pt(0, shadowOffsetY))
		draw.Draw(layer, r, image.NewUniform(shadowColor), image.Point{}, draw.Src)
	}
	if !found {
		return
	}
	draw.Draw(dst, dst.Bounds(), blur.Gaussian(layer, shadowBlur), image.Point{}, draw.Over)
}
