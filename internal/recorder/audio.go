package recorder

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"screenrec/internal/capture"
)

// audioWorker drives one audio input. The driver callback copies
// every buffer into a bounded queue and never blocks on I/O; the
// worker goroutine drains the queue into the sink until the session
// signal trips. A failed track never aborts the session, recordings
// without audio are valid.
type audioWorker struct {
	label  string
	src    *AudioSource
	path   string
	opener capture.AudioInputOpener
	sinkFn AudioSinkFactory
	signal *StopSignal
	clock  Clock
	poll   time.Duration
	queue  chan []byte
	log    *logrus.Entry

	written int64
	errMsg  string
	outcome outcomeCell
}

// enqueue runs on the driver's callback thread. The buffer is only
// valid for the duration of the call, so it is copied before the
// non-blocking send; when the queue is full the buffer is dropped
// rather than stalling the driver.
func (w *audioWorker) enqueue(p []byte) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case w.queue <- buf:
	default:
	}
}

func (w *audioWorker) run() {
	in, err := w.opener.Open(capture.AudioDeviceConfig{
		DeviceName: w.src.DeviceName,
		Loopback:   w.src.Loopback,
		SampleRate: w.src.SampleRate,
		Channels:   w.src.Channels,
	}, w.enqueue)
	if err != nil {
		w.log.WithError(err).Error("audio device unavailable, continuing without this track")
		w.finish(OutcomeFailed, errors.Wrap(err, "open device"))
		return
	}

	sink, err := w.sinkFn(w.path, w.src.SampleRate, w.src.Channels)
	if err != nil {
		_ = in.Close()
		w.finish(OutcomeFailed, err)
		return
	}

	if err := in.Start(); err != nil {
		_ = in.Close()
		_ = sink.Close()
		w.finish(OutcomeFailed, errors.Wrap(err, "start device"))
		return
	}

	writeErr := w.drainUntilStopped(sink)

	// Stop the device before the final sweep so no buffer can land
	// in the queue after it has been emptied.
	if err := in.Close(); err != nil {
		w.log.WithError(err).Warn("audio device close")
	}
	if writeErr == nil {
		writeErr = w.drainRemaining(sink)
	}
	closeErr := sink.Close()

	switch {
	case writeErr != nil:
		w.log.WithError(writeErr).Error("audio track failed")
		w.finish(OutcomeFailed, writeErr)
	case closeErr != nil:
		w.log.WithError(closeErr).Error("audio track failed")
		w.finish(OutcomeFailed, closeErr)
	case w.written == 0:
		w.finish(OutcomeFailed, errors.New("no audio captured"))
	default:
		w.log.WithField("buffers", w.written).Debug("audio track done")
		w.finish(OutcomeSuccess, nil)
	}
}

func (w *audioWorker) drainUntilStopped(sink AudioSink) error {
	for !w.signal.IsSet() {
		select {
		case buf := <-w.queue:
			if err := sink.WriteS16LE(buf); err != nil {
				return errors.Wrap(err, "write audio")
			}
			w.written++
		case <-w.clock.After(w.poll):
		}
	}
	return nil
}

func (w *audioWorker) drainRemaining(sink AudioSink) error {
	for {
		select {
		case buf := <-w.queue:
			if err := sink.WriteS16LE(buf); err != nil {
				return errors.Wrap(err, "write audio")
			}
			w.written++
		default:
			return nil
		}
	}
}

// finish publishes the terminal outcome. The error string is stored
// before the atomic outcome store, so any reader that observes a
// terminal outcome also observes the reason.
func (w *audioWorker) finish(o CaptureOutcome, err error) {
	if err != nil {
		w.errMsg = err.Error()
	}
	w.outcome.set(o)
}

// track snapshots the worker state for the session result. Safe to
// call even when the worker missed the join deadline: a still
// pending outcome is reported as such and the error field is only
// read behind a terminal outcome.
func (w *audioWorker) track() TrackOutcome {
	o := w.outcome.get()
	t := TrackOutcome{Label: w.label, Outcome: o, Status: o.String(), Path: w.path}
	if o == OutcomeFailed {
		t.Error = w.errMsg
	}
	return t
}
