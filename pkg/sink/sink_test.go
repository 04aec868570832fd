package sink

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 440, 1080))
	for i := range img.Pix {
		img.Pix[i] = 0xcc
	}
	img.Set(10, 10, color.Black)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestServer(t *testing.T, publicHost string) *Server {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir(), PublicHost: publicHost})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() time.Time { return time.UnixMilli(1760000000123) }
	return s
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) uploadReply {
	t.Helper()
	var r uploadReply
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return r
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, "https://fotos.example.org/")
	h := s.Router()
	data := jpegBytes(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "file", "fotobox.jpg", data))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	r := decodeReply(t, rec)
	if r.URL != "https://fotos.example.org/foto-1760000000123.jpg" {
		t.Errorf("url = %q", r.URL)
	}

	stored, err := os.ReadFile(filepath.Join(s.dir, "foto-1760000000123.jpg"))
	if err != nil || !bytes.Equal(stored, data) {
		t.Errorf("stored file differs: %v", err)
	}

	// Same millisecond: the second upload must not overwrite the first.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "file", "fotobox.jpg", []byte("second")))
	if got := decodeReply(t, rec).URL; got != "https://fotos.example.org/foto-1760000000124.jpg" {
		t.Errorf("second url = %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/foto", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "second" {
		t.Errorf("latest = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/foto-1760000000123.jpg", nil))
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), data) {
		t.Errorf("GET stored file = %d (%d bytes)", rec.Code, rec.Body.Len())
	}
}

func TestUploadURLFromRequest(t *testing.T) {
	s := newTestServer(t, "")
	req := uploadRequest(t, "file", "strip.png", []byte("png"))
	req.Host = "192.168.1.20:8080"

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if got := decodeReply(t, rec).URL; got != "http://192.168.1.20:8080/foto-1760000000123.png" {
		t.Errorf("url = %q", got)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, "")

	for _, req := range []*http.Request{
		uploadRequest(t, "image", "a.jpg", []byte("x")),
		httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("")),
	} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if r := decodeReply(t, rec); r.Error == "" || r.URL != "" {
			t.Errorf("reply = %+v", r)
		}
	}
}

func TestLatestBeforeUpload(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, "").Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/foto", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFileHandlerRejectsOutsideNames(t *testing.T) {
	s := newTestServer(t, "")
	if err := os.WriteFile(filepath.Join(s.dir, ".secret"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/.secret", "/missing.jpg", "/_"} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", p, rec.Code)
		}
	}
}

func TestRecentPage(t *testing.T) {
	s := newTestServer(t, "")
	h := s.Router()

	h.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, "file", "a.jpg", jpegBytes(t)))
	s.now = func() time.Time { return time.UnixMilli(1760000600123) }
	h.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, "file", "b.jpg", []byte("not an image")))

	us, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(us) != 2 || us[0].Name != "foto-1760000600123.jpg" || us[1].Name != "foto-1760000000123.jpg" {
		t.Fatalf("Recent = %+v", us)
	}
	if us[1].Thumb != "_/foto-1760000000123@y180.jpg" || us[0].Thumb != "" {
		t.Errorf("thumbs = %q, %q", us[0].Thumb, us[1].Thumb)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+us[1].Thumb, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("thumb status = %d", rec.Code)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if img.Bounds().Dy() != thumbHeight {
		t.Errorf("thumb height = %d", img.Bounds().Dy())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rec.Body.String()
	for _, want := range []string{"foto-1760000600123.jpg", "foto-1760000000123@y180.jpg", "10 min ago", "just now"} {
		if !strings.Contains(body, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"fotobox.JPG":   ".jpg",
		"strip.png":     ".png",
		"noext":         ".jpg",
		"evil.p/ng":     ".jpg",
		"x.verylongext": ".jpg",
		"a.b c":         ".jpg",
	}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStamper(t *testing.T) {
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
	st, err := NewStamper("fotobox", "Winter Party")
	if err != nil {
		t.Fatalf("NewStamper: %v", err)
	}
	defer st.Close()

	path := filepath.Join(t.TempDir(), "foto.jpg")
	if err := os.WriteFile(path, jpegBytes(t), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := st.Stamp(path, time.Date(2026, 1, 17, 20, 15, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Stamp: %v", err)
	}
	got, err := st.Caption(path)
	if err != nil || got != "Winter Party" {
		t.Errorf("Caption = %q, %v", got, err)
	}

	s, err := New(Config{Dir: t.TempDir(), Stamper: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := s.Router()
	h.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, "file", "fotobox.jpg", jpegBytes(t)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), `<div class="caption">Winter Party</div>`) {
		t.Errorf("recent page does not show the stamped caption:\n%s", rec.Body)
	}
}

func TestRenderRecentCaption(t *testing.T) {
	now := time.Date(2026, 1, 17, 20, 15, 0, 0, time.UTC)
	us := []Upload{
		{Name: "foto-1.jpg", Caption: "Winter <Party>", Taken: now},
		{Name: "foto-2.jpg", Taken: now},
	}
	bs, err := renderRecent(us, now)
	if err != nil {
		t.Fatalf("renderRecent: %v", err)
	}
	body := string(bs)
	if !strings.Contains(body, `<div class="caption">Winter &lt;Party&gt;</div>`) {
		t.Errorf("caption missing or unescaped:\n%s", body)
	}
	if n := strings.Count(body, `class="caption"`); n != 1 {
		t.Errorf("caption divs = %d, want 1", n)
	}
}
