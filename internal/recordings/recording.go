// Package recordings keeps the capture history: one document per
// recording run, tied to the artifact on disk by file name.
package recordings

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	// StatusRecording marks a run whose session is still active.
	StatusRecording Status = "RECORDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// TrackReport stores how one capture source ended: success, failed,
// skipped, or pending when the worker never reported back.
type TrackReport struct {
	Label  string `bson:"label" json:"label"`
	Status string `bson:"status" json:"status"`
	Error  string `bson:"error,omitempty" json:"error,omitempty"`
}

// MediaInfo is what the probe reports about the finished file.
type MediaInfo struct {
	Duration   float64 `bson:"duration" json:"duration"`
	Width      int     `bson:"width" json:"width"`
	Height     int     `bson:"height" json:"height"`
	Codec      string  `bson:"codec" json:"codec"`
	AudioCodec string  `bson:"audio_codec,omitempty" json:"audio_codec,omitempty"`
	FrameRate  float64 `bson:"frame_rate" json:"frame_rate"`
	FileSize   int64   `bson:"file_size" json:"file_size"`
}

// Recording is one capture run's history document. Name is the final
// file's base name and doubles as the lookup key for the HTTP API.
type Recording struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Base      string             `bson:"base" json:"base"`
	FilePath  string             `bson:"file_path" json:"file_path"`
	Status    Status             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time         `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	FPS       int           `bson:"fps" json:"fps"`
	Letterbox bool          `bson:"letterbox" json:"letterbox"`
	Requested time.Duration `bson:"requested_duration" json:"requested_duration"`

	Frames int64         `bson:"frames" json:"frames"`
	Tracks []TrackReport `bson:"tracks,omitempty" json:"tracks,omitempty"`
	Media  *MediaInfo    `bson:"media,omitempty" json:"media,omitempty"`
	Error  string        `bson:"error,omitempty" json:"error,omitempty"`

	// FileExists is filled from disk when listing, not persisted.
	FileExists bool `bson:"-" json:"file_exists"`
}
