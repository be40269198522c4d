package recorder

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBusy rejects a start while a session is already running.
	ErrBusy = errors.New("a recording is already in progress")
	// ErrIdle rejects a stop when nothing is running.
	ErrIdle = errors.New("no recording in progress")
)

// Status is a point-in-time view of the manager.
type Status struct {
	Recording   bool
	CurrentFile string
}

// Manager owns the single active session. Start rejects a second
// recording while one runs; when a session finishes, its result is
// handed to the onDone hook on the session's goroutine before the
// slot frees up for the next start.
type Manager struct {
	caps   Capabilities
	log    *logrus.Entry
	onDone func(*Result)

	mu      sync.Mutex
	current *Session
	done    chan struct{}
}

// NewManager wires the manager with the given capabilities. onDone
// may be nil.
func NewManager(caps Capabilities, log *logrus.Entry, onDone func(*Result)) *Manager {
	return &Manager{caps: caps, log: log, onDone: onDone}
}

// Status reports whether a session is active and the file name it
// will produce.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Status{}
	}
	return Status{
		Recording:   true,
		CurrentFile: filepath.Base(m.current.OutputPath()),
	}
}

// Start claims the recording slot and runs a new session on its own
// goroutine. ErrBusy when the slot is taken.
func (m *Manager) Start(ctx context.Context, base string, opts *Options) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, ErrBusy
	}

	sess, err := NewSession(base, opts, m.caps, m.log)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	m.current = sess
	m.done = done
	go m.run(ctx, sess, done)
	return sess, nil
}

func (m *Manager) run(ctx context.Context, sess *Session, done chan struct{}) {
	defer close(done)
	res := sess.Run(ctx)

	m.mu.Lock()
	m.current = nil
	m.done = nil
	m.mu.Unlock()

	if m.onDone != nil {
		m.onDone(res)
	}
}

// Stop signals the active session and returns the name of the file it
// is finishing. The session keeps running through its join and
// assembly; completion is reported through onDone.
func (m *Manager) Stop() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", ErrIdle
	}
	m.current.Stop()
	return filepath.Base(m.current.OutputPath()), nil
}

// Shutdown stops the active session, if any, and waits for its
// pipeline to drain, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sess, done := m.current, m.done
	m.mu.Unlock()

	if sess == nil {
		return nil
	}
	sess.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for recording to finish")
	}
}
