package strip

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/fotobox"
)

// DefaultJPEGQuality is used for the compressed upload copy.
const DefaultJPEGQuality = 70

// Composite is a fully painted strip.
type Composite struct {
	Image    *image.RGBA
	Layout   fotobox.LayoutSpec
	Geometry Geometry

	// Missing lists the photo indexes that could not be decoded.
	Missing []int
	// Fallback is set when the background was replaced by white.
	Fallback bool
	// Errors holds the load failures that were rendered around.
	Errors []error
}

// PNG encodes the composite losslessly, for download.
func (c *Composite) PNG() ([]byte, error) {
	return c.encode(imgio.PNGEncoder())
}

// JPEG encodes the composite lossily, to keep uploads small.
func (c *Composite) JPEG(quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return c.encode(imgio.JPEGEncoder(quality))
}

func (c *Composite) encode(e imgio.Encoder) ([]byte, error) {
	var buf bytes.Buffer
	if err := e(&buf, c.Image); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the composite to path, choosing the encoding by extension.
func (c *Composite) Save(path string, quality int) error {
	var e imgio.Encoder
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		e = imgio.PNGEncoder()
	case ".jpg", ".jpeg":
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		e = imgio.JPEGEncoder(quality)
	default:
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(path))
	}

	klog.Infof("saving %dx%d composite to %s", c.Geometry.Width, c.Geometry.Height, path)
	if err := imgio.Save(path, c.Image, e); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
