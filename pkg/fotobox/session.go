package fotobox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tstromberg/fotobox/pkg/camera"
)

var (
	// ErrNoLayout is returned when an operation needs a selected layout.
	ErrNoLayout = errors.New("no layout selected")
	// ErrSessionFull is returned when a photo would exceed the layout's shot count.
	ErrSessionFull = errors.New("all shots taken")
)

// ColorMode is the tonal transform applied to each frame at capture time.
type ColorMode int

const (
	Color ColorMode = iota
	Grayscale
	Sepia
	Vintage
)

func (m ColorMode) String() string {
	switch m {
	case Grayscale:
		return "grayscale"
	case Sepia:
		return "sepia"
	case Vintage:
		return "vintage"
	default:
		return "color"
	}
}

// ParseColorMode parses a mode name; "bw" is accepted for grayscale.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "color":
		return Color, nil
	case "grayscale", "bw":
		return Grayscale, nil
	case "sepia":
		return Sepia, nil
	case "vintage":
		return Vintage, nil
	}
	return Color, fmt.Errorf("unknown color mode %q", s)
}

// Photo is a PNG-encoded still. Its index in Session.Photos picks its grid cell.
type Photo []byte

// Defaults are the values a fresh session starts with.
type Defaults struct {
	Background Background
	ColorMode  ColorMode
}

// Session is the state of one kiosk run. Every field is always present;
// a restart replaces the whole record through NewSession.
type Session struct {
	ID          string
	Layout      *LayoutSpec
	Photos      []Photo
	Background  Background
	ColorMode   ColorMode
	UploadedURL string
	Camera      camera.Source
}

// NewSession returns a clean session. It is used on startup and on restart.
func NewSession(d Defaults) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Photos:     []Photo{},
		Background: d.Background,
		ColorMode:  d.ColorMode,
	}
}

// SelectLayout sets the layout and drops photos taken for another layout.
func (s *Session) SelectLayout(l LayoutSpec) {
	s.Layout = &l
	s.Photos = []Photo{}
	s.UploadedURL = ""
}

// SetBackgroundColor activates a solid color and clears any image.
// The shared link no longer matches the composite, so it is dropped.
func (s *Session) SetBackgroundColor(hex string) {
	s.Background = SolidColor(hex)
	s.UploadedURL = ""
}

// SetBackgroundImage activates an image and clears any solid color and the shared link.
func (s *Session) SetBackgroundImage(path string) {
	s.Background = ImageBackground(path)
	s.UploadedURL = ""
}

// AppendPhoto adds the next shot.
func (s *Session) AppendPhoto(p Photo) error {
	if s.Layout == nil {
		return ErrNoLayout
	}
	if len(s.Photos) >= s.Layout.ShotCount {
		return fmt.Errorf("%d of %d: %w", len(s.Photos), s.Layout.ShotCount, ErrSessionFull)
	}
	s.Photos = append(s.Photos, p)
	return nil
}

// ClearPhotos drops every shot and the upload that was made from them.
func (s *Session) ClearPhotos() {
	s.Photos = []Photo{}
	s.UploadedURL = ""
}

// Complete reports whether every shot of the layout has been taken.
func (s *Session) Complete() bool {
	return s.Layout != nil && len(s.Photos) == s.Layout.ShotCount
}

// Clone returns a copy that shares no slices or pointers with s.
// Photo payloads are immutable once captured and are shared.
func (s *Session) Clone() *Session {
	c := *s
	if s.Layout != nil {
		l := *s.Layout
		c.Layout = &l
	}
	c.Photos = append([]Photo{}, s.Photos...)
	return &c
}
