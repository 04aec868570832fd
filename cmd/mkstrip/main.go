// mkstrip renders a strip from image files, without a camera.
//
//	mkstrip --layout 4 --background bg/snow.jpg --out strip.png a.jpg b.jpg c.jpg d.jpg
package main

import (
	"context"
	"flag"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/imgio"
	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/fotobox"
	"github.com/tstromberg/fotobox/pkg/frame"
	"github.com/tstromberg/fotobox/pkg/strip"
)

var (
	layoutID   = flag.Int("layout", 1, "layout id (1=strip3, 2=strip4, 3=instax, 4=grid2x2)")
	background = flag.String("background", "", "background image")
	bgColor    = flag.String("color", "#ffffff", "background color, when no image is given")
	mode       = flag.String("mode", "color", "color mode: color, bw, sepia or vintage")
	out        = flag.String("out", "strip.png", "output file (.png or .jpg)")
	quality    = flag.Int("quality", strip.DefaultJPEGQuality, "JPEG quality")
	branding   = flag.String("branding", "", "footer text below the date")
	dateFormat = flag.String("date-format", fotobox.Default().Footer.DateFormat, "footer date format, empty for none")
	mirror     = flag.Bool("mirror", false, "treat inputs as camera frames: mirror and filter them")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	l, err := fotobox.Lookup(*layoutID)
	if err != nil {
		klog.Exitf("layout: %v", err)
	}
	cm, err := fotobox.ParseColorMode(*mode)
	if err != nil {
		klog.Exitf("mode: %v", err)
	}
	if flag.NArg() > l.ShotCount {
		klog.Exitf("%s takes %d photos, got %d", l, l.ShotCount, flag.NArg())
	}

	s := fotobox.NewSession(fotobox.Defaults{Background: fotobox.SolidColor(*bgColor), ColorMode: cm})
	s.SelectLayout(l)
	if *background != "" {
		s.SetBackgroundImage(*background)
	}

	for _, path := range flag.Args() {
		img, err := imgio.Open(path)
		if err != nil {
			klog.Exitf("open %s: %v", path, err)
		}
		var p fotobox.Photo
		if *mirror {
			p, err = frame.Capture(img, s.ColorMode)
		} else {
			p, err = frame.Encode(frame.Tone(img, s.ColorMode))
		}
		if err != nil {
			klog.Exitf("process %s: %v", path, err)
		}
		if err := s.AppendPhoto(p); err != nil {
			klog.Exitf("%s: %v", path, err)
		}
	}

	c, err := strip.Render(context.Background(), l, s.Photos, s.Background, strip.Options{})
	if err != nil {
		klog.Exitf("render failed: %v", err)
	}
	for _, e := range c.Errors {
		klog.Warningf("%v", e)
	}

	date := ""
	if *dateFormat != "" {
		date = time.Now().Format(*dateFormat)
	}
	strip.Annotate(c, date, *branding)

	if err := c.Save(*out, *quality); err != nil {
		klog.Exitf("save failed: %v", err)
	}
}
