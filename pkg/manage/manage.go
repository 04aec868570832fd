// Package manage provides the HTTP control API of the kiosk.
package manage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/backdrop"
	"github.com/tstromberg/fotobox/pkg/camera"
	"github.com/tstromberg/fotobox/pkg/capture"
	"github.com/tstromberg/fotobox/pkg/fotobox"
	"github.com/tstromberg/fotobox/pkg/handoff"
	"github.com/tstromberg/fotobox/pkg/strip"
)

// Options configure a Server.
type Options struct {
	Config fotobox.Config
	// NewCamera returns an unopened camera for a capture screen.
	NewCamera func() camera.Source
	// Catalog lists the background images; nil offers colors only.
	Catalog *backdrop.Catalog
	// Sharer uploads composites; nil disables sharing.
	Sharer *handoff.Sharer
	// UIDir, if set, is served as static files at /.
	UIDir string
	// Sequencer passes options to the capture sequencer.
	Sequencer []capture.Option
}

// Server is the kiosk's control surface around one session.
type Server struct {
	cfg       fotobox.Config
	store     *fotobox.Store
	seq       *capture.Sequencer
	display   *Display
	newCamera func() camera.Source
	catalog   *backdrop.Catalog
	sharer    *handoff.Sharer
	uiDir     string
	now       func() time.Time

	// renderMu serializes composite renders and uploads.
	renderMu sync.Mutex
}

// New creates a new server.
func New(o Options) *Server {
	st := fotobox.NewStore(o.Config.SessionDefaults())
	d := &Display{}
	return &Server{
		cfg:       o.Config,
		store:     st,
		seq:       capture.New(st, d, capture.ConfigFrom(o.Config.Capture), o.Sequencer...),
		display:   d,
		newCamera: o.NewCamera,
		catalog:   o.Catalog,
		sharer:    o.Sharer,
		uiDir:     o.UIDir,
		now:       time.Now,
	}
}

// Close stops any running sequence and releases the camera.
func (s *Server) Close() error {
	return s.seq.Back()
}

// Router returns the routes of the control API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.StatusHandler())
		r.Get("/layouts", s.LayoutsHandler())
		r.Post("/layout/{id}", s.SelectLayoutHandler())
		r.Post("/camera", s.CameraHandler())
		r.Post("/capture", s.CaptureHandler())
		r.Post("/retake", s.RetakeHandler())
		r.Post("/back", s.BackHandler())
		r.Post("/restart", s.RestartHandler())
		r.Post("/filter", s.FilterHandler())
		r.Get("/backgrounds", s.BackgroundsHandler())
		r.Post("/background/color", s.BackgroundColorHandler())
		r.Post("/background/image", s.BackgroundImageHandler())
		r.Get("/preview", s.PreviewHandler())
		r.Get("/download", s.DownloadHandler())
		r.Post("/share", s.ShareHandler())
		r.Get("/qr", s.QRHandler())
	})

	if s.uiDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.uiDir)))
	}
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		klog.V(1).Infof("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusCode maps the package errors to HTTP statuses.
func statusCode(err error) int {
	switch {
	case errors.Is(err, fotobox.ErrUnknownLayout), errors.Is(err, backdrop.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrBusy), errors.Is(err, capture.ErrNoCamera),
		errors.Is(err, fotobox.ErrNoLayout), errors.Is(err, fotobox.ErrSessionFull),
		errors.Is(err, camera.ErrAccessDenied):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// render draws the composite of the current session with its footer.
func (s *Server) render(ctx context.Context) (*strip.Composite, *fotobox.Session, error) {
	sess := s.store.Current()
	if sess.Layout == nil {
		return nil, sess, fotobox.ErrNoLayout
	}

	c, err := strip.Render(ctx, *sess.Layout, sess.Photos, sess.Background, strip.Options{})
	if err != nil {
		return nil, sess, err
	}
	strip.Annotate(c, s.now().Format(s.cfg.Footer.DateFormat), s.cfg.Footer.Branding)
	return c, sess, nil
}
