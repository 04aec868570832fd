package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestStillsCyclesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), color.RGBA{0, 0xff, 0, 0xff})
	writePNG(t, filepath.Join(dir, "a.png"), color.RGBA{0xff, 0, 0, 0xff})
	writePNG(t, filepath.Join(dir, ".hidden.png"), color.RGBA{0, 0, 0xff, 0xff})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewStills(dir)
	ctx := context.Background()
	if _, err := s.Grab(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Grab before Open = %v, want ErrClosed", err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	wantR := []uint32{0xffff, 0, 0xffff}
	for i, want := range wantR {
		img, err := s.Grab(ctx)
		if err != nil {
			t.Fatalf("Grab %d: %v", i, err)
		}
		r, _, b, _ := img.At(0, 0).RGBA()
		if r != want || b != 0 {
			t.Errorf("frame %d: r=%#x b=%#x, want r=%#x", i, r, b, want)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := s.Grab(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Grab after Close = %v, want ErrClosed", err)
	}
}

func TestStillsEmptyDirIsDenied(t *testing.T) {
	if err := NewStills(t.TempDir()).Open(context.Background()); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Open = %v, want ErrAccessDenied", err)
	}
	err := NewStills(filepath.Join(t.TempDir(), "absent")).Open(context.Background())
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Open missing dir = %v, want ErrAccessDenied", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing dir = %v, lost the scan error", err)
	}
}

func TestFFmpegMissingDeviceIsDenied(t *testing.T) {
	f := NewFFmpeg("ffmpeg", filepath.Join(t.TempDir(), "video9"), 640, 480)
	if err := f.Open(context.Background()); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Open = %v, want ErrAccessDenied", err)
	}
	if _, err := f.Grab(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Grab = %v, want ErrClosed", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
