// fotobox runs the photo booth kiosk: the control API, the capture sequence
// and the upload hand-off.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/backdrop"
	"github.com/tstromberg/fotobox/pkg/camera"
	"github.com/tstromberg/fotobox/pkg/fotobox"
	"github.com/tstromberg/fotobox/pkg/handoff"
	"github.com/tstromberg/fotobox/pkg/manage"
)

var (
	configPath  = flag.String("config", "", "path to a TOML configuration file")
	addr        = flag.String("addr", "", "host:port to bind to (overrides the config)")
	uploadURL   = flag.String("upload-url", "", "upload endpoint (overrides the config)")
	bgDir       = flag.String("backgrounds", "", "directory of background images (overrides the config)")
	bundled     = flag.String("install-backgrounds", "", "copy this directory of bundled backgrounds into --backgrounds on first start")
	stillsDir   = flag.String("stills", "", "use the images in this directory instead of a camera")
	uiDir       = flag.String("ui", "", "directory of the kiosk web UI to serve at /")
	watchFlag   = flag.Bool("watch", true, "reload background images when the directory changes")
	noShareFlag = flag.Bool("no-share", false, "disable uploads and QR codes")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	c, err := fotobox.Load(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	if *addr != "" {
		c.Listen = *addr
	}
	if *uploadURL != "" {
		c.UploadURL = *uploadURL
	}
	if *bgDir != "" {
		c.BackgroundsDir = *bgDir
	}
	if *stillsDir != "" {
		c.Camera.StillsDir = *stillsDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cat *backdrop.Catalog
	if c.BackgroundsDir != "" {
		if *bundled != "" {
			if err := backdrop.Install(*bundled, c.BackgroundsDir); err != nil {
				klog.Exitf("install backgrounds: %v", err)
			}
		}
		cat = backdrop.New(c.BackgroundsDir)
		if err := cat.Reload(); err != nil {
			klog.Warningf("backgrounds: %v", err)
		}
	}

	var sharer *handoff.Sharer
	if c.UploadURL != "" && !*noShareFlag {
		sharer = &handoff.Sharer{Uploader: handoff.NewUploader(c.UploadURL, nil), QRSize: c.QRSize}
	}

	s := manage.New(manage.Options{
		Config:    c,
		NewCamera: cameraFactory(c.Camera),
		Catalog:   cat,
		Sharer:    sharer,
		UIDir:     *uiDir,
	})

	var wg sync.WaitGroup
	if cat != nil && *watchFlag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cat.Watch(ctx, nil); err != nil {
				klog.Errorf("watch failed: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		serve(ctx, s.Router(), c.Listen)
	}()

	wg.Wait()
	if err := s.Close(); err != nil {
		klog.Warningf("close: %v", err)
	}
}

func cameraFactory(c fotobox.Camera) func() camera.Source {
	if c.StillsDir != "" {
		klog.Infof("using still images from %s as camera", c.StillsDir)
		return func() camera.Source { return camera.NewStills(c.StillsDir) }
	}
	return func() camera.Source { return camera.NewFFmpeg(c.FFmpeg, c.Device, c.Width, c.Height) }
}

// serve serves h until ctx ends.
func serve(ctx context.Context, h http.Handler, addr string) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	klog.Infof("Listening on %s...", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		klog.Exitf("listen failed: %v", err)
	}
}
