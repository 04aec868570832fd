package manage

import (
	"sync"

	"github.com/tstromberg/fotobox/pkg/capture"
)

// Overlay is what the kiosk draws over the camera preview.
type Overlay struct {
	Kind      string `json:"kind"` // "", "countdown", "shutter", "hint" or "done"
	Countdown int    `json:"countdown,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Display records the sequencer's feedback so the kiosk UI can poll it.
type Display struct {
	mu sync.Mutex
	o  Overlay
}

var _ capture.Display = (*Display)(nil)

func (d *Display) set(o Overlay) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.o = o
}

func (d *Display) Countdown(n int) { d.set(Overlay{Kind: "countdown", Countdown: n}) }

func (d *Display) Shutter() { d.set(Overlay{Kind: "shutter"}) }

func (d *Display) Hint(msg string) { d.set(Overlay{Kind: "hint", Message: msg}) }

func (d *Display) Done(msg string) { d.set(Overlay{Kind: "done", Message: msg}) }

func (d *Display) Clear() { d.set(Overlay{}) }

// Overlay returns the current overlay.
func (d *Display) Overlay() Overlay {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.o
}
