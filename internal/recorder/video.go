package recorder

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"screenrec/internal/capture"
)

type videoState int32

const (
	videoInitializing videoState = iota
	videoCapturing
	videoFinalizing
)

// videoWorker paces the screen-capture loop. It runs on the goroutine
// that started the session, so the session blocks for the whole
// recording. Any loop error trips the session signal first, which
// unblocks the audio workers, and is then reported as a failed track.
type videoWorker struct {
	opts     *Options
	capturer capture.ScreenCapturer
	sinkFn   SinkFactory
	signal   *StopSignal
	clock    Clock
	log      *logrus.Entry

	state   atomic.Int32
	frames  int64
	errMsg  string
	outcome outcomeCell
}

func (v *videoWorker) run() {
	v.state.Store(int32(videoInitializing))

	region, err := v.resolveRegion()
	if err != nil {
		v.signal.Set()
		v.finish(OutcomeFailed, err)
		return
	}

	transform := v.newTransform(region)
	outW, outH := transform.Size()

	sink, err := v.sinkFn(v.opts.TempVideoPath, outW, outH, v.opts.FPS)
	if err != nil {
		v.signal.Set()
		v.finish(OutcomeFailed, errors.Wrap(err, "open video sink"))
		return
	}

	v.state.Store(int32(videoCapturing))
	loopErr := v.captureLoop(region, transform, sink)

	// Finalizing always releases the sink, whatever the loop did.
	v.state.Store(int32(videoFinalizing))
	closeErr := sink.Close()

	switch {
	case loopErr != nil:
		v.finish(OutcomeFailed, loopErr)
	case closeErr != nil:
		v.finish(OutcomeFailed, closeErr)
	case v.frames == 0:
		v.finish(OutcomeFailed, errors.New("no frames captured"))
	default:
		v.log.WithField("frames", v.frames).Debug("video track done")
		v.finish(OutcomeSuccess, nil)
	}
}

func (v *videoWorker) resolveRegion() (image.Rectangle, error) {
	if r := v.opts.Region; r != nil {
		return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height), nil
	}
	bounds, err := v.capturer.PrimaryBounds()
	if err != nil {
		return image.Rectangle{}, errors.Wrap(err, "resolve display bounds")
	}
	return bounds, nil
}

func (v *videoWorker) newTransform(region image.Rectangle) *FrameTransform {
	if v.opts.Letterbox {
		return NewFrameTransform(true, v.opts.TargetWidth, v.opts.TargetHeight)
	}
	return NewFrameTransform(false, region.Dx(), region.Dy())
}

// captureLoop grabs frames at the configured rate until the signal
// trips or the duration elapses. The inter-frame sleep is the loop's
// only suspension point, so shutdown latency is bounded by one frame
// interval.
func (v *videoWorker) captureLoop(region image.Rectangle, transform *FrameTransform, sink FrameSink) error {
	interval := time.Second / time.Duration(v.opts.FPS)
	start := v.clock.Now()
	var last time.Time

	for {
		if v.signal.IsSet() {
			return nil
		}
		if v.opts.Duration > 0 && v.clock.Now().Sub(start) >= v.opts.Duration {
			return nil
		}

		if !last.IsZero() {
			if wait := interval - v.clock.Now().Sub(last); wait > 0 {
				v.clock.Sleep(wait)
			}
		}

		img, err := v.capturer.Capture(region)
		if err != nil {
			v.signal.Set()
			return errors.Wrap(err, "capture frame")
		}
		last = v.clock.Now()

		if err := sink.WriteFrame(transform.Apply(img)); err != nil {
			v.signal.Set()
			return errors.Wrap(err, "write frame")
		}
		v.frames++
	}
}

func (v *videoWorker) currentState() videoState {
	return videoState(v.state.Load())
}

func (v *videoWorker) finish(o CaptureOutcome, err error) {
	if err != nil {
		v.errMsg = err.Error()
	}
	v.outcome.set(o)
}

func (v *videoWorker) track() TrackOutcome {
	o := v.outcome.get()
	t := TrackOutcome{Label: "video", Outcome: o, Status: o.String(), Path: v.opts.TempVideoPath}
	if o == OutcomeFailed {
		t.Error = v.errMsg
	}
	return t
}
