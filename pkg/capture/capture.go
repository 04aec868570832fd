// Package capture runs the timed multi-shot capture sequence of the booth.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tstromberg/fotobox/pkg/fotobox"
	"github.com/tstromberg/fotobox/pkg/frame"
	"k8s.io/klog/v2"
)

var (
	// ErrBusy is returned while the capture control is disabled.
	ErrBusy = errors.New("capture in progress or finished")
	// ErrNoCamera is returned when the session has no open camera.
	ErrNoCamera = errors.New("no camera")
	// ErrSessionChanged is returned when the session was replaced mid-sequence.
	ErrSessionChanged = errors.New("session replaced during capture")
)

// State is the position of the sequencer in its state machine.
type State int

const (
	Idle State = iota
	Countdown
	Capturing
	InterShotPause
	SequenceComplete
	Cancelled
	Failed
)

func (s State) String() string {
	return [...]string{"idle", "countdown", "capturing", "pause", "complete", "cancelled", "failed"}[s]
}

// Display shows the sequencer's feedback to the person in front of the camera.
type Display interface {
	Countdown(n int)
	Shutter()
	Hint(msg string)
	Done(msg string)
	Clear()
}

// Clock suspends the sequence. Sleep returns early with ctx's error when ctx ends.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config holds the timings and messages of a sequence.
type Config struct {
	CountdownFrom int
	Tick          time.Duration
	Shutter       time.Duration
	Pause         time.Duration
	NextMessage   string
	DoneMessage   string
}

// ConfigFrom converts the kiosk's capture settings.
func ConfigFrom(c fotobox.Capture) Config {
	return Config{
		CountdownFrom: c.CountdownFrom,
		Tick:          c.Tick(),
		Shutter:       c.Shutter(),
		Pause:         c.Pause(),
		NextMessage:   c.NextMessage,
		DoneMessage:   c.DoneMessage,
	}
}

// Sequencer drives exactly ShotCount captures for the active session.
// Once started it runs to completion on its own; the capture control stays
// disabled until Retake, Back or Restart.
type Sequencer struct {
	store   *fotobox.Store
	display Display
	clock   Clock
	cfg     Config

	mu      sync.Mutex
	state   State
	enabled bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Option customizes a Sequencer.
type Option func(*Sequencer)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// New returns an idle sequencer for the sessions held by store.
func New(store *fotobox.Store, d Display, cfg Config, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:   store,
		display: d,
		clock:   realClock{},
		cfg:     cfg,
		enabled: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Enabled reports whether the capture control accepts a start.
func (s *Sequencer) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Running reports whether a sequence is in progress.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start begins a sequence in the background and returns immediately.
// The sequence stops early when ctx ends or Cancel is called.
func (s *Sequencer) Start(ctx context.Context) error {
	sess := s.store.Current()
	if sess.Layout == nil {
		return fotobox.ErrNoLayout
	}
	if sess.Camera == nil {
		return ErrNoCamera
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	s.enabled = false
	s.err = nil
	s.cancel = cancel
	s.done = make(chan struct{})

	klog.Infof("session %s: starting %d-shot sequence (%s, %s)", sess.ID, sess.Layout.ShotCount, sess.Layout, sess.ColorMode)
	go s.run(ctx, sess, s.done)
	return nil
}

// Run starts a sequence and waits for it to finish.
func (s *Sequencer) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// Wait blocks until the current sequence, if any, has stopped and returns its error.
func (s *Sequencer) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops a running sequence and waits for it to settle.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Retake drops the captured photos and re-enables the capture control.
func (s *Sequencer) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrBusy
	}

	if err := s.store.Update(func(sess *fotobox.Session) error {
		sess.ClearPhotos()
		return nil
	}); err != nil {
		return err
	}
	s.reset()
	return nil
}

// Back leaves the capture screen: the sequence is cancelled before the
// camera is released, and the photos are dropped.
func (s *Sequencer) Back() error {
	s.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.store.Update(func(sess *fotobox.Session) error {
		var err error
		if sess.Camera != nil {
			err = sess.Camera.Close()
			sess.Camera = nil
		}
		sess.ClearPhotos()
		return err
	})
	s.reset()
	if err != nil {
		return fmt.Errorf("close camera: %w", err)
	}
	return nil
}

// Restart cancels any sequence and replaces the session with a fresh one.
func (s *Sequencer) Restart() *fotobox.Session {
	s.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.store.Restart()
	s.reset()
	return sess
}

// reset must be called with mu held and no sequence running. The error of
// the last sequence stays available to Wait.
func (s *Sequencer) reset() {
	s.state = Idle
	s.enabled = true
	s.display.Clear()
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Sequencer) run(ctx context.Context, sess *fotobox.Session, done chan struct{}) {
	err := s.sequence(ctx, sess)

	s.mu.Lock()
	switch {
	case err == nil:
		s.state = SequenceComplete
	case ctx.Err() != nil:
		s.state = Cancelled
		klog.Infof("session %s: sequence cancelled", sess.ID)
	default:
		s.state = Failed
		klog.Errorf("session %s: sequence failed: %v", sess.ID, err)
	}
	s.err = err
	s.cancel()
	s.cancel = nil
	s.mu.Unlock()

	if err != nil {
		s.display.Clear()
	}
	close(done)
}

func (s *Sequencer) sequence(ctx context.Context, sess *fotobox.Session) error {
	count := sess.Layout.ShotCount
	for i := 0; i < count; i++ {
		last := i == count-1

		s.setState(Countdown)
		for n := s.cfg.CountdownFrom; n > 0; n-- {
			s.display.Countdown(n)
			if err := s.clock.Sleep(ctx, s.cfg.Tick); err != nil {
				return err
			}
		}

		s.setState(Capturing)
		s.display.Shutter()
		if err := s.clock.Sleep(ctx, s.cfg.Shutter); err != nil {
			return err
		}
		if err := s.shoot(ctx, sess, i); err != nil {
			return err
		}
		s.display.Clear()

		if count > 1 && !last {
			s.setState(InterShotPause)
			s.display.Hint(s.cfg.NextMessage)
			if err := s.clock.Sleep(ctx, s.cfg.Pause); err != nil {
				return err
			}
			s.display.Clear()
		}
	}

	s.display.Done(s.cfg.DoneMessage)
	klog.Infof("session %s: sequence complete", sess.ID)
	return nil
}

func (s *Sequencer) shoot(ctx context.Context, sess *fotobox.Session, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := sess.Camera.Grab(ctx)
	if err != nil {
		return fmt.Errorf("grab shot %d: %w", i+1, err)
	}
	p, err := frame.Capture(img, sess.ColorMode)
	if err != nil {
		return fmt.Errorf("process shot %d: %w", i+1, err)
	}

	klog.V(1).Infof("session %s: shot %d/%d (%d bytes)", sess.ID, i+1, sess.Layout.ShotCount, len(p))
	return s.store.Update(func(cur *fotobox.Session) error {
		if cur.ID != sess.ID {
			return ErrSessionChanged
		}
		return cur.AppendPhoto(p)
	})
}
