package manage

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"k8s.io/klog/v2"

	"github.com/tstromberg/fotobox/pkg/camera"
	"github.com/tstromberg/fotobox/pkg/fotobox"
	"github.com/tstromberg/fotobox/pkg/handoff"
)

// CameraDeniedMessage is shown when the camera cannot be opened.
const CameraDeniedMessage = "The camera could not be opened. Please allow camera access and try again."

type layoutView struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
	Shots   int    `json:"shots"`
}

func viewLayout(l fotobox.LayoutSpec) layoutView {
	return layoutView{ID: l.ID, Name: l.Name, Columns: l.Columns, Rows: l.Rows, Shots: l.ShotCount}
}

type backgroundView struct {
	Color string `json:"color,omitempty"`
	Image string `json:"image,omitempty"`
}

// Status is the state the kiosk UI renders.
type Status struct {
	Session     string         `json:"session"`
	Layout      *layoutView    `json:"layout"`
	Photos      int            `json:"photos"`
	Background  backgroundView `json:"background"`
	ColorMode   string         `json:"color_mode"`
	CameraOpen  bool           `json:"camera_open"`
	State       string         `json:"state"`
	CanCapture  bool           `json:"can_capture"`
	Overlay     Overlay        `json:"overlay"`
	UploadedURL string         `json:"uploaded_url"`
}

// Status returns a snapshot of the session and sequencer.
func (s *Server) Status() Status {
	sess := s.store.Current()
	st := Status{
		Session:     sess.ID,
		Photos:      len(sess.Photos),
		Background:  backgroundView{Color: sess.Background.Color()},
		ColorMode:   sess.ColorMode.String(),
		CameraOpen:  sess.Camera != nil,
		State:       s.seq.State().String(),
		CanCapture:  s.seq.Enabled() && sess.Layout != nil && sess.Camera != nil,
		Overlay:     s.display.Overlay(),
		UploadedURL: sess.UploadedURL,
	}
	if sess.Layout != nil {
		lv := viewLayout(*sess.Layout)
		st.Layout = &lv
	}
	if sess.Background.IsImage() && s.catalog != nil {
		for _, b := range s.catalog.List() {
			if b.Path == sess.Background.Image() {
				st.Background.Image = b.Name
			}
		}
	}
	return st
}

// StatusHandler reports the session state.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// LayoutsHandler lists the available layouts.
func (s *Server) LayoutsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		vs := []layoutView{}
		for _, l := range fotobox.Layouts() {
			vs = append(vs, viewLayout(l))
		}
		writeJSON(w, http.StatusOK, vs)
	}
}

// SelectLayoutHandler picks the layout and starts over with its photos.
func (s *Server) SelectLayoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "layout id must be a number")
			return
		}
		l, err := fotobox.Lookup(id)
		if err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		if s.seq.Running() {
			writeError(w, http.StatusConflict, "capture in progress")
			return
		}

		if err := s.store.Update(func(sess *fotobox.Session) error {
			sess.SelectLayout(l)
			return nil
		}); err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		if err := s.seq.Retake(); err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		klog.Infof("layout %s selected", l)
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// CameraHandler opens the camera for the capture screen. When access is
// denied the session goes back to the start.
func (s *Server) CameraHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store.Current().Layout == nil {
			writeError(w, http.StatusConflict, fotobox.ErrNoLayout.Error())
			return
		}
		if s.newCamera == nil {
			writeError(w, http.StatusServiceUnavailable, "no camera configured")
			return
		}
		if s.seq.Running() {
			writeError(w, http.StatusConflict, "capture in progress")
			return
		}

		src := s.newCamera()
		if err := src.Open(r.Context()); err != nil {
			klog.Errorf("open camera: %v", err)
			if cerr := src.Close(); cerr != nil {
				klog.Warningf("close camera: %v", cerr)
			}
			if err := s.seq.Back(); err != nil {
				klog.Warningf("back: %v", err)
			}
			if errors.Is(err, camera.ErrAccessDenied) {
				writeError(w, http.StatusConflict, CameraDeniedMessage)
				return
			}
			writeError(w, http.StatusInternalServerError, CameraDeniedMessage)
			return
		}

		if err := s.store.Update(func(sess *fotobox.Session) error {
			if sess.Camera != nil {
				if err := sess.Camera.Close(); err != nil {
					klog.Warningf("close previous camera: %v", err)
				}
			}
			sess.Camera = src
			return nil
		}); err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// CaptureHandler starts the capture sequence. It returns at once; the UI
// follows the progress through the status overlay.
func (s *Server) CaptureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		// The sequence outlives the request.
		if err := s.seq.Start(context.Background()); err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, s.Status())
	}
}

// RetakeHandler drops the photos and re-enables capture.
func (s *Server) RetakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := s.seq.Retake(); err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// BackHandler leaves the capture screen.
func (s *Server) BackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := s.seq.Back(); err != nil {
			klog.Warningf("back: %v", err)
		}
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// RestartHandler replaces the session with a fresh one.
func (s *Server) RestartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.seq.Restart()
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// FilterHandler sets the color mode of the following captures.
func (s *Server) FilterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, err := fotobox.ParseColorMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.store.Update(func(sess *fotobox.Session) error {
			sess.ColorMode = m
			return nil
		})
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// BackgroundsHandler lists the palette and the background images.
func (s *Server) BackgroundsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		images := []string{}
		if s.catalog != nil {
			for _, b := range s.catalog.List() {
				images = append(images, b.Name)
			}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"colors": s.cfg.Colors, "images": images})
	}
}

// BackgroundColorHandler activates a solid background.
func (s *Server) BackgroundColorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Color string `json:"color"`
		}
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := fotobox.ParseHex(req.Color); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.store.Update(func(sess *fotobox.Session) error {
			sess.SetBackgroundColor(req.Color)
			return nil
		})
		writeJSON(w, http.StatusOK, s.Status())
	}
}

// BackgroundImageHandler activates a background image from the catalog.
func (s *Server) BackgroundImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.catalog == nil {
			writeError(w, http.StatusNotFound, "no background images")
			return
		}
		b, err := s.catalog.Lookup(req.Name)
		if err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		s.store.Update(func(sess *fotobox.Session) error {
			sess.SetBackgroundImage(b.Path)
			return nil
		})
		writeJSON(w, http.StatusOK, s.Status())
	}
}

func (s *Server) servePNG(w http.ResponseWriter, r *http.Request, attachment bool) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	c, _, err := s.render(r.Context())
	if err != nil {
		writeError(w, statusCode(err), err.Error())
		return
	}
	bs, err := c.PNG()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if attachment {
		w.Header().Set("Content-Disposition", `attachment; filename="fotobox.png"`)
	}
	w.Write(bs)
}

// PreviewHandler renders the composite with the photos taken so far.
func (s *Server) PreviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePNG(w, r, false)
	}
}

// DownloadHandler returns the final composite as a PNG file.
func (s *Server) DownloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePNG(w, r, true)
	}
}

type shareView struct {
	URL     string `json:"url,omitempty"`
	QR      string `json:"qr,omitempty"`
	Message string `json:"message,omitempty"`
}

// ShareHandler uploads the composite as a JPEG and returns the link and its QR code.
func (s *Server) ShareHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sharer == nil {
			writeJSON(w, http.StatusServiceUnavailable, shareView{Message: handoff.UploadFailedMessage})
			return
		}

		s.renderMu.Lock()
		defer s.renderMu.Unlock()

		c, sess, err := s.render(r.Context())
		if err != nil {
			writeError(w, statusCode(err), err.Error())
			return
		}
		bs, err := c.JPEG(s.cfg.JPEGQuality)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		res, err := s.sharer.Share(r.Context(), "fotobox.jpg", bs)
		s.store.Update(func(cur *fotobox.Session) error {
			if cur.ID == sess.ID {
				cur.UploadedURL = res.URL
			}
			return nil
		})
		if err != nil {
			writeJSON(w, http.StatusBadGateway, shareView{Message: res.Message})
			return
		}
		writeJSON(w, http.StatusOK, shareView{
			URL: res.URL,
			QR:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.QR),
		})
	}
}

// QRHandler returns the QR code of the last upload of this session.
func (s *Server) QRHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		url := s.store.Current().UploadedURL
		if url == "" {
			writeError(w, http.StatusNotFound, "nothing shared yet")
			return
		}
		bs, err := handoff.EncodeQR(url, s.cfg.QRSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, handoff.Message(err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(bs)
	}
}
