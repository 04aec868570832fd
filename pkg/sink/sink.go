// Package sink is a small upload server for finished composites. It stores
// each upload under a timestamped name and answers with a public link.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// MaxUploadSize bounds a single upload.
const MaxUploadSize = 32 << 20

// Config configures a Server.
type Config struct {
	// Dir is where uploads are stored.
	Dir string
	// PublicHost is the base of returned links, e.g. "https://fotos.example.org".
	// When empty the scheme and host of the request are used.
	PublicHost string
	// Stamper, if set, writes metadata into every stored upload.
	Stamper *Stamper
}

// Server stores uploads and serves them back.
type Server struct {
	dir        string
	publicHost string
	stamper    *Stamper
	now        func() time.Time

	mu     sync.Mutex
	latest string
}

// New returns a server storing into c.Dir, creating it if needed.
func New(c Config) (*Server, error) {
	if c.Dir == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(filepath.Join(c.Dir, thumbDir), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &Server{
		dir:        c.Dir,
		publicHost: strings.TrimSuffix(c.PublicHost, "/"),
		stamper:    c.Stamper,
		now:        time.Now,
	}, nil
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/upload", s.UploadHandler).Methods("POST")
	r.HandleFunc("/foto", s.LatestHandler).Methods("GET")
	r.HandleFunc("/", s.RecentHandler).Methods("GET")
	r.HandleFunc("/"+thumbDir+"/{name}", s.ThumbHandler).Methods("GET")
	r.HandleFunc("/{name}", s.FileHandler).Methods("GET")
	return r
}

type uploadReply struct {
	URL   string `json:"url,omitempty"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v uploadReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("encode reply: %v", err)
	}
}

// UploadHandler stores the multipart field "file" and returns its link.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		klog.Warningf("upload from %s without file: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusBadRequest, uploadReply{Error: "no file received"})
		return
	}
	defer f.Close()

	name, err := s.store(f, extension(hdr.Filename))
	if err != nil {
		klog.Errorf("store upload: %v", err)
		writeJSON(w, http.StatusInternalServerError, uploadReply{Error: "could not store file"})
		return
	}

	url := s.baseURL(r) + "/" + name
	klog.Infof("stored %s (%d bytes) from %s -> %s", name, hdr.Size, r.RemoteAddr, url)
	writeJSON(w, http.StatusOK, uploadReply{URL: url, Path: "/" + name})
}

// store writes an upload to disk as foto-<unix millis><ext> and makes it the latest.
func (s *Server) store(src io.Reader, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	var name, path string
	for {
		name = fmt.Sprintf("foto-%d%s", ms, ext)
		path = filepath.Join(s.dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		ms++
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}

	if s.stamper != nil {
		if err := s.stamper.Stamp(path, s.now()); err != nil {
			klog.Warningf("stamp %s: %v", name, err)
		}
	}
	if err := thumbnail(s.dir, name); err != nil {
		klog.Warningf("thumbnail %s: %v", name, err)
	}

	latest := filepath.Join(s.dir, "foto"+ext)
	if err := copy.Copy(path, latest); err != nil {
		return "", fmt.Errorf("copy to %s: %w", latest, err)
	}
	s.latest = latest
	return name, nil
}

func (s *Server) baseURL(r *http.Request) string {
	if s.publicHost != "" {
		if strings.Contains(s.publicHost, "://") {
			return s.publicHost
		}
		return "http://" + s.publicHost
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// LatestHandler serves the most recent upload.
func (s *Server) LatestHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest == "" {
		http.Error(w, "no photo yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, latest)
}

// FileHandler serves a stored upload by name.
func (s *Server) FileHandler(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.dir, mux.Vars(r)["name"])
}

// ThumbHandler serves the thumbnail of an upload.
func (s *Server) ThumbHandler(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, filepath.Join(s.dir, thumbDir), mux.Vars(r)["name"])
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, dir string, name string) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(dir, name)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	klog.V(1).Infof("serving %s to %s", path, r.RemoteAddr)
	http.ServeFile(w, r, path)
}

// extension returns a safe lowercase extension for an uploaded file name.
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		return ".jpg"
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ".jpg"
		}
	}
	return ext
}
