package server

import (
	"context"
	"image"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"

	"screenrec/internal/capture"
	"screenrec/internal/events"
	"screenrec/internal/recorder"
	"screenrec/internal/recordings"
)

// startRequest is the recording/start body. Every field is optional;
// an empty body records the full primary display with both audio
// sources until stopped.
type startRequest struct {
	DurationSeconds    float64          `json:"duration_seconds"`
	FPS                int              `json:"fps"`
	ShortsFormat       *bool            `json:"shorts_format"`
	RegionEnabled      bool             `json:"region_enabled"`
	Region             *recorder.Region `json:"region"`
	MicEnabled         *bool            `json:"mic_enabled"`
	SystemAudioEnabled *bool            `json:"system_audio_enabled"`
	MicDevice          string           `json:"mic_device"`
	SystemDevice       string           `json:"system_device"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *FiberServer) startRecording(c *fiber.Ctx) error {
	var req startRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	rc := s.cfg.Recording

	fps := req.FPS
	if fps == 0 {
		fps = rc.DefaultFPS
	}
	if fps < 1 || fps > 60 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "fps must be between 1 and 60",
		})
	}
	if req.DurationSeconds < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "duration must not be negative",
		})
	}

	region, err := s.resolveRegion(&req)
	if err != nil {
		return respondError(c, err)
	}

	mic, system, err := s.resolveAudio(&req)
	if err != nil {
		return respondError(c, err)
	}

	if free, err := freeDiskMB(rc.RecordingsDir); err != nil {
		s.log.WithError(err).Warn("disk usage check failed")
	} else if free < rc.MinFreeDiskMB {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Insufficient disk space for a new recording",
		})
	}

	if info := s.ffmpeg.Probe(c.Context()); !info.Available {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Encoder is not available",
		})
	}

	base := recorder.BaseName(time.Now())
	opts := &recorder.Options{
		Duration: time.Duration(req.DurationSeconds * float64(time.Second)),
		FPS:      fps,
		Region:   region,

		Letterbox:    boolOr(req.ShortsFormat, true),
		TargetWidth:  rc.TargetWidth,
		TargetHeight: rc.TargetHeight,

		Mic:    mic,
		System: system,

		SystemAudioOffset: rc.SystemAudioOffset,
		MinAudioBytes:     rc.MinAudioBytes,
		MinVideoBytes:     rc.MinVideoBytes,
		JoinTimeout:       rc.JoinTimeout,
		QueuePollInterval: rc.QueuePollInterval,
		QueueSize:         rc.QueueSize,
	}
	opts.DerivePaths(rc.TempDir, rc.RecordingsDir, base, rc.TempVideoExt, rc.FinalExt)

	rec := &recordings.Recording{
		Name:      base + "." + rc.FinalExt,
		Base:      base,
		FilePath:  opts.FinalPath,
		FPS:       fps,
		Letterbox: opts.Letterbox,
		Requested: opts.Duration,
	}
	if err := s.history.Create(c.Context(), rec); err != nil {
		s.log.WithError(err).Error("could not register recording")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register recording",
		})
	}

	// The session must outlive this request, so it runs under the
	// process context, not the request's.
	if _, err := s.manager.Start(context.Background(), base, opts); err != nil {
		if delErr := s.history.Delete(c.Context(), rec.Name); delErr != nil {
			s.log.WithError(delErr).Warn("could not drop placeholder history entry")
		}
		if errors.Is(err, recorder.ErrBusy) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A recording is already in progress",
			})
		}
		s.log.WithError(err).Error("could not start recording")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recording options",
		})
	}

	s.hub.Publish(events.Event{Type: events.TypeStarted, Data: fiber.Map{"file": rec.Name}})

	return c.JSON(fiber.Map{
		"message": "Recording started",
		"file":    rec.Name,
		"status":  rec.Status,
	})
}

// respondError renders a fiber.Error as the JSON error shape every
// other handler uses.
func respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal error"})
}

// resolveRegion validates the requested capture region against the
// primary display. A region partially off-screen is clamped; one
// entirely off-screen is rejected. Nil means full display.
func (s *FiberServer) resolveRegion(req *startRequest) (*recorder.Region, error) {
	if !req.RegionEnabled {
		return nil, nil
	}
	if req.Region == nil || req.Region.Width <= 0 || req.Region.Height <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			"A region with positive width and height is required when region_enabled is set")
	}

	bounds, err := s.capturer.PrimaryBounds()
	if err != nil {
		s.log.WithError(err).Error("no display to record")
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "No active display")
	}

	r := req.Region
	rect := image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
	clamped, ok := capture.ClampRegion(rect, bounds)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Region is entirely outside the display")
	}
	return &recorder.Region{
		Left:   clamped.Min.X,
		Top:    clamped.Min.Y,
		Width:  clamped.Dx(),
		Height: clamped.Dy(),
	}, nil
}

// resolveAudio builds the audio source pair from the request. Device
// names are matched against the live device list when it is
// available; otherwise the name is passed through for the worker to
// resolve at open time.
func (s *FiberServer) resolveAudio(req *startRequest) (mic, system *recorder.AudioSource, _ error) {
	rc := s.cfg.Recording

	var list *capture.DeviceList
	if req.MicDevice != "" || req.SystemDevice != "" {
		var err error
		if list, err = s.devices(); err != nil {
			s.log.WithError(err).Warn("device enumeration failed, deferring device match to capture open")
			list = nil
		}
	}

	if boolOr(req.MicEnabled, true) {
		if list != nil && req.MicDevice != "" {
			if _, ok := capture.MatchDevice(list.Capture, req.MicDevice); !ok {
				return nil, nil, fiber.NewError(fiber.StatusBadRequest, "Microphone device not found")
			}
		}
		mic = &recorder.AudioSource{
			Label:      "mic",
			DeviceName: req.MicDevice,
			SampleRate: rc.SampleRate,
			Channels:   rc.Channels,
		}
	}

	if boolOr(req.SystemAudioEnabled, true) {
		if list != nil && req.SystemDevice != "" {
			if _, ok := capture.MatchDevice(list.Playback, req.SystemDevice); !ok {
				return nil, nil, fiber.NewError(fiber.StatusBadRequest, "System audio device not found")
			}
		}
		system = &recorder.AudioSource{
			Label:      "system",
			DeviceName: req.SystemDevice,
			Loopback:   true,
			SampleRate: rc.SampleRate,
			Channels:   rc.Channels,
		}
	}
	return mic, system, nil
}

func (s *FiberServer) stopRecording(c *fiber.Ctx) error {
	name, err := s.manager.Stop()
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "No recording in progress",
		})
	}

	s.hub.Publish(events.Event{Type: events.TypeStopped, Data: fiber.Map{"file": name}})

	// The session is still joining its workers and assembling; the
	// completed or failed event follows when it finishes.
	return c.JSON(fiber.Map{
		"message": "Recording stopping",
		"file":    name,
	})
}

func (s *FiberServer) recordingStatus(c *fiber.Ctx) error {
	st := s.manager.Status()
	resp := fiber.Map{
		"recording":    st.Recording,
		"current_file": nil,
	}
	if st.Recording {
		resp["current_file"] = st.CurrentFile
	}
	return c.JSON(resp)
}

// onRecordingDone runs on the session goroutine after every run. It
// closes the history entry, fills media metadata for assembled files
// and pushes the terminal event.
func (s *FiberServer) onRecordingDone(res *recorder.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fin := recordings.Finish{
		EndedAt: time.Now(),
		Frames:  res.Frames,
		Tracks:  trackReports(res),
	}

	if !res.Assembled {
		if res.Err != nil {
			fin.Error = res.Err.Error()
		}
		if err := s.history.MarkFailed(ctx, res.Base, fin); err != nil {
			s.log.WithError(err).WithField("base", res.Base).Warn("could not close history entry")
		}
		s.hub.Publish(events.Event{Type: events.TypeFailed, Data: fiber.Map{
			"base":  res.Base,
			"error": fin.Error,
		}})
		return
	}

	if media, err := recordings.ProbeMedia(ctx, s.cfg.Recording.FFprobePath, res.FinalPath); err != nil {
		s.log.WithError(err).WithField("file", res.FinalPath).Warn("media probe failed")
	} else {
		fin.Media = media
	}
	if err := s.history.MarkCompleted(ctx, res.Base, fin); err != nil {
		s.log.WithError(err).WithField("base", res.Base).Warn("could not close history entry")
	}
	s.hub.Publish(events.Event{Type: events.TypeCompleted, Data: fiber.Map{
		"file":   filepath.Base(res.FinalPath),
		"frames": res.Frames,
	}})
}

func trackReports(res *recorder.Result) []recordings.TrackReport {
	reports := []recordings.TrackReport{{
		Label:  res.Video.Label,
		Status: res.Video.Status,
		Error:  res.Video.Error,
	}}
	for _, t := range res.Audio {
		reports = append(reports, recordings.TrackReport{
			Label:  t.Label,
			Status: t.Status,
			Error:  t.Error,
		})
	}
	return reports
}

func freeDiskMB(path string) (uint64, error) {
	du, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return du.Free / (1 << 20), nil
}
