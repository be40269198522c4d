// Package events pushes recording lifecycle notifications to
// WebSocket subscribers.
package events

import "time"

const (
	TypeStarted   = "recording_started"
	TypeStopped   = "recording_stopped"
	TypeCompleted = "recording_completed"
	TypeFailed    = "recording_failed"
)

// Event is one lifecycle notification. Data carries the event's
// payload, typically the recording name and its outcome.
type Event struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data,omitempty"`
}
