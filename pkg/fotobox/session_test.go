package fotobox

import (
	"context"
	"errors"
	"image"
	"testing"
)

func TestParseColorMode(t *testing.T) {
	tests := map[string]ColorMode{
		"":          Color,
		"color":     Color,
		"BW":        Grayscale,
		"grayscale": Grayscale,
		"sepia":     Sepia,
		" vintage ": Vintage,
	}
	for in, want := range tests {
		got, err := ParseColorMode(in)
		if err != nil || got != want {
			t.Errorf("ParseColorMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseColorMode("neon"); err == nil {
		t.Error("ParseColorMode(neon) succeeded")
	}
	for _, m := range []ColorMode{Color, Grayscale, Sepia, Vintage} {
		if got, _ := ParseColorMode(m.String()); got != m {
			t.Errorf("%v does not round-trip through its name", m)
		}
	}
}

func TestAppendPhoto(t *testing.T) {
	s := NewSession(Defaults{})
	if err := s.AppendPhoto(Photo("x")); !errors.Is(err, ErrNoLayout) {
		t.Fatalf("AppendPhoto without layout = %v, want ErrNoLayout", err)
	}

	l, _ := Lookup(1)
	s.SelectLayout(l)
	for i := 0; i < l.ShotCount; i++ {
		if s.Complete() {
			t.Fatalf("complete after %d photos", i)
		}
		if err := s.AppendPhoto(Photo{byte(i)}); err != nil {
			t.Fatalf("AppendPhoto %d: %v", i, err)
		}
	}
	if !s.Complete() {
		t.Error("not complete after all shots")
	}
	if err := s.AppendPhoto(Photo("extra")); !errors.Is(err, ErrSessionFull) {
		t.Errorf("AppendPhoto beyond shot count = %v, want ErrSessionFull", err)
	}
	if len(s.Photos) != l.ShotCount {
		t.Errorf("%d photos, want %d", len(s.Photos), l.ShotCount)
	}
}

func TestSelectLayoutDropsPhotos(t *testing.T) {
	s := NewSession(Defaults{})
	l1, _ := Lookup(1)
	l3, _ := Lookup(3)

	s.SelectLayout(l1)
	_ = s.AppendPhoto(Photo("a"))
	s.UploadedURL = "https://host/foto-1.png"

	s.SelectLayout(l3)
	if len(s.Photos) != 0 || s.UploadedURL != "" {
		t.Errorf("photos=%d url=%q after layout change", len(s.Photos), s.UploadedURL)
	}
	if s.Layout.ID != 3 {
		t.Errorf("layout = %v", s.Layout)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSession(Defaults{})
	l, _ := Lookup(4)
	s.SelectLayout(l)
	_ = s.AppendPhoto(Photo("a"))

	c := s.Clone()
	c.Photos = append(c.Photos, Photo("b"))
	c.Layout.Name = "changed"

	if len(s.Photos) != 1 || s.Layout.Name != "grid2x2" {
		t.Errorf("clone mutated original: %d photos, layout %q", len(s.Photos), s.Layout.Name)
	}
}

type closeCounter struct{ closes int }

func (c *closeCounter) Open(context.Context) error { return nil }

func (c *closeCounter) Grab(context.Context) (image.Image, error) { return nil, nil }

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestStoreRestart(t *testing.T) {
	d := Defaults{Background: SolidColor("#fce4ec"), ColorMode: Color}
	st := NewStore(d)

	cam := &closeCounter{}
	l, _ := Lookup(2)
	if err := st.Update(func(s *Session) error {
		s.SelectLayout(l)
		s.Camera = cam
		s.ColorMode = Sepia
		s.SetBackgroundImage("bg.png")
		s.UploadedURL = "https://host/foto-9.png"
		return s.AppendPhoto(Photo("p"))
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	old := st.Current()

	fresh := st.Restart()
	if cam.closes != 1 {
		t.Errorf("camera closed %d times, want 1", cam.closes)
	}
	if fresh.ID == old.ID {
		t.Error("restart kept the session id")
	}
	if fresh.Layout != nil || len(fresh.Photos) != 0 || fresh.Camera != nil || fresh.UploadedURL != "" {
		t.Errorf("restart left state behind: %+v", fresh)
	}
	if fresh.Background != d.Background || fresh.ColorMode != Color {
		t.Errorf("restart did not apply defaults: %s %s", fresh.Background, fresh.ColorMode)
	}
	if cur := st.Current(); cur.ID != fresh.ID {
		t.Errorf("Current = %s, want %s", cur.ID, fresh.ID)
	}
}

func TestBackgroundChangeClearsUploadedURL(t *testing.T) {
	s := NewSession(Defaults{})

	s.UploadedURL = "https://host/foto-1.jpg"
	s.SetBackgroundColor("#000000")
	if s.UploadedURL != "" {
		t.Errorf("after color: uploaded url = %q", s.UploadedURL)
	}

	s.UploadedURL = "https://host/foto-2.jpg"
	s.SetBackgroundImage("bg.png")
	if s.UploadedURL != "" {
		t.Errorf("after image: uploaded url = %q", s.UploadedURL)
	}
}
