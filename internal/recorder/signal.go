package recorder

import "sync/atomic"

// StopSignal is the shared cancellation flag for one session. Every
// capture loop polls it; once set it stays set for the rest of the
// session. Safe for concurrent use from the video loop, the audio
// workers, and an external stop request.
type StopSignal struct {
	tripped atomic.Bool
}

func NewStopSignal() *StopSignal {
	return &StopSignal{}
}

// Clear resets the flag. Only meaningful before a session starts its
// workers; a running session never clears its signal.
func (s *StopSignal) Clear() {
	s.tripped.Store(false)
}

// Set trips the flag. Idempotent.
func (s *StopSignal) Set() {
	s.tripped.Store(true)
}

// IsSet reports whether the flag has been tripped.
func (s *StopSignal) IsSet() bool {
	return s.tripped.Load()
}
