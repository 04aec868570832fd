package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tstromberg/fotobox/pkg/camera"
	"github.com/tstromberg/fotobox/pkg/fotobox"
)

type recordingDisplay struct {
	mu     sync.Mutex
	events []string
}

func (d *recordingDisplay) add(e string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDisplay) Countdown(n int) { d.add(fmt.Sprintf("countdown %d", n)) }
func (d *recordingDisplay) Shutter()        { d.add("shutter") }
func (d *recordingDisplay) Hint(msg string) { d.add("hint " + msg) }
func (d *recordingDisplay) Done(msg string) { d.add("done " + msg) }
func (d *recordingDisplay) Clear()          { d.add("clear") }

func (d *recordingDisplay) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.events...)
}

type instantClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// blockingClock parks every Sleep until ctx ends.
type blockingClock struct {
	entered chan struct{}
}

func (c *blockingClock) Sleep(ctx context.Context, _ time.Duration) error {
	c.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

type fakeCamera struct {
	mu     sync.Mutex
	grabs  int
	closed bool
	err    error
}

func (c *fakeCamera) Open(context.Context) error { return nil }

func (c *fakeCamera) Grab(context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.grabs++
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: uint8(c.grabs * 40), A: 255}), image.Point{}, draw.Src)
	return img, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var testConfig = Config{
	CountdownFrom: 3,
	Tick:          time.Second,
	Shutter:       500 * time.Millisecond,
	Pause:         2500 * time.Millisecond,
	NextMessage:   "next",
	DoneMessage:   "finished",
}

func newTestStore(t *testing.T, layoutID int, cam camera.Source) *fotobox.Store {
	t.Helper()
	l, err := fotobox.Lookup(layoutID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	st := fotobox.NewStore(fotobox.Default().SessionDefaults())
	if err := st.Update(func(s *fotobox.Session) error {
		s.SelectLayout(l)
		s.Camera = cam
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return st
}

func TestRunCompletesSequence(t *testing.T) {
	cam := &fakeCamera{}
	st := newTestStore(t, 1, cam)
	d := &recordingDisplay{}
	clock := &instantClock{}
	seq := New(st, d, testConfig, WithClock(clock))

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := len(st.Current().Photos); got != 3 {
		t.Errorf("photos = %d, want 3", got)
	}
	if seq.Enabled() {
		t.Error("capture control enabled after completion")
	}
	if seq.State() != SequenceComplete {
		t.Errorf("state = %s, want complete", seq.State())
	}
	if cam.grabs != 3 {
		t.Errorf("grabs = %d, want 3", cam.grabs)
	}

	shot := []string{"countdown 3", "countdown 2", "countdown 1", "shutter", "clear"}
	pause := []string{"hint next", "clear"}
	var want []string
	want = append(want, shot...)
	want = append(want, pause...)
	want = append(want, shot...)
	want = append(want, pause...)
	want = append(want, shot...)
	want = append(want, "done finished")
	if diff := cmp.Diff(want, d.Events()); diff != "" {
		t.Errorf("display events mismatch (-want +got):\n%s", diff)
	}

	tick, shutter, wait := time.Second, 500*time.Millisecond, 2500*time.Millisecond
	wantSleeps := []time.Duration{
		tick, tick, tick, shutter, wait,
		tick, tick, tick, shutter, wait,
		tick, tick, tick, shutter,
	}
	if diff := cmp.Diff(wantSleeps, clock.sleeps); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleShotSkipsPause(t *testing.T) {
	st := newTestStore(t, 3, &fakeCamera{})
	d := &recordingDisplay{}
	seq := New(st, d, testConfig, WithClock(&instantClock{}))

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"countdown 3", "countdown 2", "countdown 1", "shutter", "clear", "done finished"}
	if diff := cmp.Diff(want, d.Events()); diff != "" {
		t.Errorf("display events mismatch (-want +got):\n%s", diff)
	}
	if got := len(st.Current().Photos); got != 1 {
		t.Errorf("photos = %d, want 1", got)
	}
}

func TestStartIsNotReentrant(t *testing.T) {
	st := newTestStore(t, 4, &fakeCamera{})
	seq := New(st, &recordingDisplay{}, testConfig, WithClock(&instantClock{}))

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := seq.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start = %v, want ErrBusy", err)
	}
}

func TestRetakeReenablesCapture(t *testing.T) {
	st := newTestStore(t, 2, &fakeCamera{})
	seq := New(st, &recordingDisplay{}, testConfig, WithClock(&instantClock{}))

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := seq.Retake(); err != nil {
		t.Fatalf("Retake: %v", err)
	}

	if got := len(st.Current().Photos); got != 0 {
		t.Errorf("photos after retake = %d, want 0", got)
	}
	if !seq.Enabled() {
		t.Error("capture control disabled after retake")
	}
	if seq.State() != Idle {
		t.Errorf("state = %s, want idle", seq.State())
	}

	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run after retake: %v", err)
	}
	if got := len(st.Current().Photos); got != 4 {
		t.Errorf("photos after second run = %d, want 4", got)
	}
}

func TestBackCancelsMidSequence(t *testing.T) {
	cam := &fakeCamera{}
	st := newTestStore(t, 1, cam)
	clock := &blockingClock{entered: make(chan struct{})}
	seq := New(st, &recordingDisplay{}, testConfig, WithClock(clock))

	if err := seq.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-clock.entered

	if err := seq.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if err := seq.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}

	cur := st.Current()
	if len(cur.Photos) != 0 {
		t.Errorf("photos = %d, want 0", len(cur.Photos))
	}
	if cur.Camera != nil {
		t.Error("camera still attached to session")
	}
	if !cam.closed {
		t.Error("camera not closed")
	}
	if cam.grabs != 0 {
		t.Errorf("grabs = %d after cancel during countdown", cam.grabs)
	}
	if !seq.Enabled() {
		t.Error("capture control disabled after back")
	}
}

func TestRestartReplacesSession(t *testing.T) {
	cam := &fakeCamera{}
	st := newTestStore(t, 1, cam)
	clock := &blockingClock{entered: make(chan struct{})}
	seq := New(st, &recordingDisplay{}, testConfig, WithClock(clock))

	before := st.Current()
	if err := seq.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-clock.entered

	after := seq.Restart()
	if after.ID == before.ID {
		t.Error("session id unchanged after restart")
	}
	if after.Layout != nil || len(after.Photos) != 0 || after.Camera != nil {
		t.Errorf("restarted session not clean: %+v", after)
	}
	if !cam.closed {
		t.Error("camera of the old session not closed")
	}
	if seq.State() != Idle || !seq.Enabled() {
		t.Errorf("state = %s enabled = %v, want idle and enabled", seq.State(), seq.Enabled())
	}
}

func TestGrabFailureKeepsControlDisabled(t *testing.T) {
	cam := &fakeCamera{err: errors.New("unplugged")}
	st := newTestStore(t, 3, cam)
	seq := New(st, &recordingDisplay{}, testConfig, WithClock(&instantClock{}))

	if err := seq.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with a failing camera")
	}
	if seq.State() != Failed {
		t.Errorf("state = %s, want failed", seq.State())
	}
	if seq.Enabled() {
		t.Error("capture control enabled after failure")
	}
	if err := seq.Retake(); err != nil {
		t.Fatalf("Retake: %v", err)
	}
	if !seq.Enabled() {
		t.Error("capture control disabled after retake")
	}
}

func TestStartRequiresLayoutAndCamera(t *testing.T) {
	st := fotobox.NewStore(fotobox.Default().SessionDefaults())
	seq := New(st, &recordingDisplay{}, testConfig, WithClock(&instantClock{}))
	if err := seq.Start(context.Background()); !errors.Is(err, fotobox.ErrNoLayout) {
		t.Errorf("Start without layout = %v, want ErrNoLayout", err)
	}

	st = newTestStore(t, 1, nil)
	seq = New(st, &recordingDisplay{}, testConfig, WithClock(&instantClock{}))
	if err := seq.Start(context.Background()); !errors.Is(err, ErrNoCamera) {
		t.Errorf("Start without camera = %v, want ErrNoCamera", err)
	}
}
