// Package fotobox holds the session model, layout catalog and configuration of the photo booth.
package fotobox

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Camera configures the capture device.
type Camera struct {
	Device    string `toml:"device"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	FFmpeg    string `toml:"ffmpeg"`
	StillsDir string `toml:"stills_dir"`
}

// Capture configures the timing and messages of the capture sequence.
type Capture struct {
	CountdownFrom int    `toml:"countdown_from"`
	TickMS        int    `toml:"tick_ms"`
	ShutterMS     int    `toml:"shutter_ms"`
	PauseMS       int    `toml:"pause_ms"`
	NextMessage   string `toml:"next_message"`
	DoneMessage   string `toml:"done_message"`
}

// Tick returns the countdown interval.
func (c Capture) Tick() time.Duration { return time.Duration(c.TickMS) * time.Millisecond }

// Shutter returns how long the shutter indicator shows before the frame is grabbed.
func (c Capture) Shutter() time.Duration { return time.Duration(c.ShutterMS) * time.Millisecond }

// Pause returns how long the between-shot hint shows.
func (c Capture) Pause() time.Duration { return time.Duration(c.PauseMS) * time.Millisecond }

// Footer configures the text printed into the footer reserve of a strip.
type Footer struct {
	Branding   string `toml:"branding"`
	DateFormat string `toml:"date_format"`
}

// Config holds configuration for the kiosk and the upload sink.
type Config struct {
	Listen         string   `toml:"listen"`
	UploadURL      string   `toml:"upload_url"`
	PublicHost     string   `toml:"public_host"` // uploadd: base of returned links
	OutDir         string   `toml:"out_dir"`     // uploadd: where uploads are stored
	BackgroundsDir string   `toml:"backgrounds_dir"`
	Colors         []string `toml:"colors"`
	JPEGQuality    int      `toml:"jpeg_quality"`
	QRSize         int      `toml:"qr_size"`
	Camera         Camera   `toml:"camera"`
	Capture        Capture  `toml:"capture"`
	Footer         Footer   `toml:"footer"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:      "localhost:12801",
		UploadURL:   "http://localhost:8080/upload",
		OutDir:      "public",
		Colors:      []string{"#ffffff", "#e3f2fd", "#f3e5f5", "#e8f5e9", "#fff3e0", "#fce4ec"},
		JPEGQuality: 70,
		QRSize:      250,
		Camera: Camera{
			Device: "/dev/video0",
			Width:  1280,
			Height: 720,
			FFmpeg: "ffmpeg",
		},
		Capture: Capture{
			CountdownFrom: 3,
			TickMS:        1000,
			ShutterMS:     500,
			PauseMS:       2500,
			NextMessage:   "Great! Get ready for the next photo...",
			DoneMessage:   "Done! Have a look at your photos.",
		},
		Footer: Footer{
			DateFormat: "02.01.2006 15:04",
		},
	}
}

// Load reads a TOML file on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bs, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("validate %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the configuration for values the kiosk cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Colors) == 0 {
		errs = append(errs, errors.New("colors: at least one color is required"))
	}
	for _, hex := range c.Colors {
		if _, err := ParseHex(hex); err != nil {
			errs = append(errs, fmt.Errorf("colors: %w", err))
		}
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality: %d is outside 1-100", c.JPEGQuality))
	}
	if c.QRSize <= 0 {
		errs = append(errs, fmt.Errorf("qr_size: %d must be positive", c.QRSize))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, fmt.Errorf("camera: invalid size %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Capture.CountdownFrom < 1 {
		errs = append(errs, fmt.Errorf("capture.countdown_from: %d must be at least 1", c.Capture.CountdownFrom))
	}
	if c.Capture.TickMS < 0 || c.Capture.ShutterMS < 0 || c.Capture.PauseMS < 0 {
		errs = append(errs, errors.New("capture: timings must not be negative"))
	}
	return errors.Join(errs...)
}

// SessionDefaults returns what a fresh session starts with: the first
// palette color and no tonal filter.
func (c Config) SessionDefaults() Defaults {
	d := Defaults{ColorMode: Color, Background: SolidColor("#ffffff")}
	if len(c.Colors) > 0 {
		d.Background = SolidColor(c.Colors[0])
	}
	return d
}
