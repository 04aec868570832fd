package fotobox

import (
	"sync"

	"k8s.io/klog/v2"
)

// Store holds the one active session of the kiosk.
type Store struct {
	mu       sync.Mutex
	session  *Session
	defaults Defaults
}

// NewStore returns a store holding a fresh session.
func NewStore(d Defaults) *Store {
	return &Store{session: NewSession(d), defaults: d}
}

// Current returns a snapshot of the active session.
func (st *Store) Current() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session.Clone()
}

// Update runs fn against the active session under the store lock.
func (st *Store) Update(fn func(*Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return fn(st.session)
}

// Restart releases the camera of the active session and replaces the whole
// record with a new one.
func (st *Store) Restart() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	old := st.session
	if old.Camera != nil {
		if err := old.Camera.Close(); err != nil {
			klog.Warningf("session %s: close camera: %v", old.ID, err)
		}
	}

	st.session = NewSession(st.defaults)
	klog.Infof("session %s replaced by %s", old.ID, st.session.ID)
	return st.session.Clone()
}
