// uploadd accepts composites from the kiosk and serves them to phones.
package main

import (
	"flag"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/fotobox"
	"github.com/tstromberg/fotobox/pkg/sink"
)

var (
	configPath = flag.String("config", "", "path to a TOML configuration file (out_dir, public_host)")
	dir        = flag.String("dir", "", "directory to store uploads in (overrides the config)")
	addr       = flag.String("addr", ":8080", "host:port to bind to")
	publicHost = flag.String("public-host", "", "base of the returned links, e.g. https://fotos.example.org (default: the request host)")
	exif       = flag.Bool("exif", false, "stamp uploads with metadata using exiftool")
	caption    = flag.String("caption", "", "image description written with --exif")
)

// sinkConfig merges the file configuration with command-line overrides.
func sinkConfig(c fotobox.Config, dir, publicHost string) sink.Config {
	sc := sink.Config{Dir: c.OutDir, PublicHost: c.PublicHost}
	if dir != "" {
		sc.Dir = dir
	}
	if publicHost != "" {
		sc.PublicHost = publicHost
	}
	return sc
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := fotobox.Load(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}

	c := sinkConfig(cfg, *dir, *publicHost)
	if *exif {
		st, err := sink.NewStamper("fotobox", *caption)
		if err != nil {
			klog.Warningf("exiftool unavailable, not stamping: %v", err)
		} else {
			defer st.Close()
			c.Stamper = st
		}
	}

	s, err := sink.New(c)
	if err != nil {
		klog.Exitf("sink: %v", err)
	}

	srv := &http.Server{Addr: *addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	klog.Infof("Listening on %s, storing in %s ...", *addr, c.Dir)
	if err := srv.ListenAndServe(); err != nil {
		klog.Exitf("listen failed: %v", err)
	}
}
