// Package camera acquires still frames from a capture device.
package camera

import (
	"context"
	"errors"
	"image"
)

// ErrAccessDenied is returned when the device cannot be opened.
var ErrAccessDenied = errors.New("camera access denied")

// ErrClosed is returned by Grab on a source that is not open.
var ErrClosed = errors.New("camera not open")

// Source is a camera that can hand out the current frame.
//
// Open acquires the device. Grab returns the frame currently in view.
// Close releases the device and is safe to call more than once.
type Source interface {
	Open(ctx context.Context) error
	Grab(ctx context.Context) (image.Image, error)
	Close() error
}
