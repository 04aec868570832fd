package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"os/exec"
	"sync"

	"k8s.io/klog/v2"
)

// FFmpeg grabs single frames from a video4linux device by running ffmpeg.
type FFmpeg struct {
	Device string
	Width  int
	Height int
	Binary string

	mu   sync.Mutex
	path string
}

// NewFFmpeg returns a source for device at the requested resolution.
func NewFFmpeg(binary, device string, width, height int) *FFmpeg {
	return &FFmpeg{Binary: binary, Device: device, Width: width, Height: height}
}

// Open checks that ffmpeg is installed and that the device can be read.
func (f *FFmpeg) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", bin, errors.Join(ErrAccessDenied, err))
	}

	fd, err := os.Open(f.Device)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("open %s: %w", f.Device, errors.Join(ErrAccessDenied, err))
		}
		return fmt.Errorf("open %s: %w", f.Device, err)
	}
	fd.Close()

	f.path = path
	klog.Infof("camera %s open at %dx%d via %s", f.Device, f.Width, f.Height, path)
	return nil
}

// Grab captures one frame.
func (f *FFmpeg) Grab(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	path := f.path
	f.mu.Unlock()
	if path == "" {
		return nil, ErrClosed
	}

	cmd := exec.CommandContext(ctx, path,
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", f.Width, f.Height),
		"-i", f.Device,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	klog.V(1).Infof("grabbing frame: %s", cmd.String())
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close releases the device.
func (f *FFmpeg) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path != "" {
		klog.Infof("camera %s closed", f.Device)
	}
	f.path = ""
	return nil
}
