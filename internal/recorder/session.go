package recorder

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"screenrec/internal/capture"
)

// Capabilities bundles the platform hooks a session needs. Production
// wiring fills it from the real backends, tests from fakes.
type Capabilities struct {
	Capturer   capture.ScreenCapturer
	Opener     capture.AudioInputOpener
	VideoSink  SinkFactory
	AudioSink  AudioSinkFactory
	Runner     CommandRunner
	FFmpegPath string
	Clock      Clock
}

// DefaultCapabilities wires the real screen grabber, audio backend,
// encoder sinks and wall clock for the ffmpeg binary at ffmpegPath.
func DefaultCapabilities(ffmpegPath string) Capabilities {
	return Capabilities{
		Capturer:   capture.NewScreenCapturer(),
		Opener:     capture.NewAudioInputOpener(),
		VideoSink:  NewFFmpegSink(ffmpegPath),
		AudioSink:  NewWAVSink,
		Runner:     NewCommandRunner(),
		FFmpegPath: ffmpegPath,
		Clock:      NewClock(),
	}
}

// Session runs one recording: a video worker on the calling
// goroutine, an audio worker per configured source on its own
// goroutine, one shared stop signal, and a final assembly pass over
// whatever the workers produced. A session runs once and is then
// discarded.
type Session struct {
	base      string
	opts      *Options
	signal    *StopSignal
	clock     Clock
	log       *logrus.Entry
	assembler *Assembler

	video *videoWorker
	audio []*audioWorker
}

// NewSession validates opts and builds the worker set. The caller
// picks the base name so artifact paths and history records agree.
func NewSession(base string, opts *Options, caps Capabilities, log *logrus.Entry) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "session options")
	}

	s := &Session{
		base:      base,
		opts:      opts,
		signal:    NewStopSignal(),
		clock:     caps.Clock,
		log:       log.WithField("session", base),
		assembler: NewAssembler(caps.FFmpegPath, caps.Runner, log.WithField("session", base)),
	}

	s.video = &videoWorker{
		opts:     opts,
		capturer: caps.Capturer,
		sinkFn:   caps.VideoSink,
		signal:   s.signal,
		clock:    s.clock,
		log:      s.log.WithField("track", "video"),
	}

	// Worker order is fixed, microphone before system audio, so the
	// result tracks line up with the assembler's input order.
	for _, in := range []struct {
		src  *AudioSource
		path string
	}{
		{opts.Mic, opts.TempMicPath},
		{opts.System, opts.TempSysPath},
	} {
		if in.src == nil {
			continue
		}
		s.audio = append(s.audio, &audioWorker{
			label:  in.src.Label,
			src:    in.src,
			path:   in.path,
			opener: caps.Opener,
			sinkFn: caps.AudioSink,
			signal: s.signal,
			clock:  s.clock,
			poll:   opts.QueuePollInterval,
			queue:  make(chan []byte, opts.QueueSize),
			log:    s.log.WithField("track", in.src.Label),
		})
	}
	return s, nil
}

// Base returns the artifact base name the session records under.
func (s *Session) Base() string { return s.base }

// OutputPath returns where the final file lands if assembly succeeds.
func (s *Session) OutputPath() string { return s.opts.FinalPath }

// Stop asks the session to wind down. Idempotent and safe from any
// goroutine; the session still runs its full shutdown, join and
// assembly before Run returns.
func (s *Session) Stop() {
	s.signal.Set()
}

// Run executes the session to completion and blocks for the whole
// recording. Cancelling ctx is equivalent to Stop; the context also
// bounds the final encoder invocation.
func (s *Session) Run(ctx context.Context) *Result {
	s.signal.Clear()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.signal.Set()
		case <-watchDone:
		}
	}()

	s.log.WithFields(logrus.Fields{
		"fps":      s.opts.FPS,
		"duration": s.opts.Duration,
		"audio":    len(s.audio),
	}).Info("recording started")

	joins := make([]chan struct{}, len(s.audio))
	for i, w := range s.audio {
		w := w
		done := make(chan struct{})
		joins[i] = done
		go func() {
			defer close(done)
			w.run()
		}()
	}

	s.video.run()

	// The capture phase is over for everyone, whatever ended it:
	// duration elapsed, an external stop, or a video failure.
	s.signal.Set()

	for i, done := range joins {
		select {
		case <-done:
		case <-s.clock.After(s.opts.JoinTimeout):
			s.log.WithField("track", s.audio[i].label).
				Warn("audio worker did not stop in time, abandoning it")
		}
	}

	res := &Result{
		Base:   s.base,
		Video:  s.video.track(),
		Frames: s.video.frames,
	}
	for _, w := range s.audio {
		res.Audio = append(res.Audio, w.track())
	}

	out, err := s.assembler.Assemble(ctx,
		s.videoInput(),
		s.audioInput(s.opts.Mic, s.opts.TempMicPath, false),
		s.audioInput(s.opts.System, s.opts.TempSysPath, true),
		s.opts.SystemAudioOffset,
		s.opts.FinalPath,
	)
	if err != nil {
		s.log.WithError(err).Error("assembly failed")
		res.Err = err
		return res
	}

	res.Assembled = true
	res.FinalPath = out.FinalPath
	s.log.WithFields(logrus.Fields{
		"file":   out.FinalPath,
		"frames": res.Frames,
		"audio":  out.AudioUsed,
	}).Info("recording completed")
	return res
}

func (s *Session) videoInput() AssemblyInput {
	return AssemblyInput{
		Path:     s.opts.TempVideoPath,
		Outcome:  s.video.outcome.get(),
		MinBytes: s.opts.MinVideoBytes,
	}
}

// audioInput pairs a source with its worker outcome. Sources that
// were never configured stay Pending with an empty path, which the
// assembler treats as absent.
func (s *Session) audioInput(src *AudioSource, path string, system bool) AssemblyInput {
	in := AssemblyInput{System: system, MinBytes: s.opts.MinAudioBytes}
	if src == nil {
		return in
	}
	in.Path = path
	for _, w := range s.audio {
		if w.src == src {
			in.Outcome = w.outcome.get()
		}
	}
	return in
}
