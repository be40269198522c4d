package recorder

import (
	"fmt"
	"path/filepath"
	"time"
)

// Region is the screen rectangle to record, in display coordinates.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AudioSource configures one labeled audio input. A session holds a
// pointer per source; nil means the source is skipped entirely, which
// is a valid configuration, not an error.
type AudioSource struct {
	Label      string `json:"label"`
	DeviceName string `json:"device_name"` // empty selects the backend default
	Loopback   bool   `json:"loopback"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Options carries everything one session needs. Constructed per
// request, validated once, immutable after the session starts.
type Options struct {
	Duration time.Duration // 0 = record until stopped
	FPS      int
	Region   *Region // nil = full primary display

	// Letterbox scales frames into a fixed portrait target and pads
	// the remainder; otherwise frames keep the region's own size.
	Letterbox    bool
	TargetWidth  int
	TargetHeight int

	Mic    *AudioSource
	System *AudioSource

	// Artifact paths, all derived from one timestamp.
	TempVideoPath string
	TempMicPath   string
	TempSysPath   string
	FinalPath     string

	// SystemAudioOffset shifts the system-audio stream during
	// assembly. Negative trims the head so it plays earlier.
	SystemAudioOffset time.Duration

	MinAudioBytes int64
	MinVideoBytes int64

	JoinTimeout       time.Duration
	QueuePollInterval time.Duration
	QueueSize         int
}

// BaseName returns the artifact base name for a session started at t.
func BaseName(t time.Time) string {
	return "screen_recording_" + t.Format("20060102_150405")
}

// DerivePaths fills the four artifact paths from the directories, the
// base name and the container extensions.
func (o *Options) DerivePaths(tempDir, recordingsDir, base, tempVideoExt, finalExt string) {
	o.TempVideoPath = filepath.Join(tempDir, base+"_temp."+tempVideoExt)
	o.TempMicPath = filepath.Join(tempDir, base+"_mic_temp.wav")
	o.TempSysPath = filepath.Join(tempDir, base+"_sys_temp.wav")
	o.FinalPath = filepath.Join(recordingsDir, base+"."+finalExt)
}

func (o *Options) Validate() error {
	if o.FPS < 1 || o.FPS > 60 {
		return fmt.Errorf("fps out of range: %d", o.FPS)
	}
	if o.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if o.Region != nil {
		if o.Region.Width <= 0 || o.Region.Height <= 0 {
			return fmt.Errorf("invalid region size: %dx%d", o.Region.Width, o.Region.Height)
		}
	}
	if o.Letterbox && (o.TargetWidth <= 0 || o.TargetHeight <= 0) {
		return fmt.Errorf("invalid letterbox target: %dx%d", o.TargetWidth, o.TargetHeight)
	}
	for _, src := range []*AudioSource{o.Mic, o.System} {
		if src == nil {
			continue
		}
		if src.SampleRate <= 0 {
			return fmt.Errorf("%s: invalid sample rate %d", src.Label, src.SampleRate)
		}
		if src.Channels < 1 || src.Channels > 2 {
			return fmt.Errorf("%s: invalid channel count %d", src.Label, src.Channels)
		}
	}
	if o.TempVideoPath == "" || o.FinalPath == "" {
		return fmt.Errorf("artifact paths not derived")
	}
	if o.Mic != nil && o.TempMicPath == "" {
		return fmt.Errorf("mic temp path not derived")
	}
	if o.System != nil && o.TempSysPath == "" {
		return fmt.Errorf("system temp path not derived")
	}
	if o.JoinTimeout <= 0 {
		return fmt.Errorf("join timeout must be positive")
	}
	if o.QueuePollInterval <= 0 {
		return fmt.Errorf("queue poll interval must be positive")
	}
	if o.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1")
	}
	return nil
}
