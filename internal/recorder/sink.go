package recorder

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
)

// FrameSink consumes RGBA frames and produces the temp video file.
type FrameSink interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// SinkFactory opens a sink for one recording. The video worker calls
// it after it has settled the output geometry.
type SinkFactory func(path string, width, height, fps int) (FrameSink, error)

// ffmpegSink pipes raw frames into an ffmpeg child process that
// encodes the intermediate video. The fast mpeg4 settings keep the
// encode ahead of capture; the final pass re-encodes properly.
type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
}

// NewFFmpegSink returns a SinkFactory backed by the ffmpeg binary at
// ffmpegPath.
func NewFFmpegSink(ffmpegPath string) SinkFactory {
	return func(path string, width, height, fps int) (FrameSink, error) {
		cmd := exec.Command(ffmpegPath,
			"-y",
			"-f", "rawvideo",
			"-pix_fmt", "rgba",
			"-s", fmt.Sprintf("%dx%d", width, height),
			"-r", strconv.Itoa(fps),
			"-i", "-",
			"-an",
			"-c:v", "mpeg4",
			"-q:v", "5",
			path,
		)
		s := &ffmpegSink{cmd: cmd, width: width, height: height}
		cmd.Stderr = &s.stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, errors.Wrap(err, "open encoder stdin")
		}
		s.stdin = stdin

		if err := cmd.Start(); err != nil {
			return nil, errors.Wrap(err, "start encoder")
		}
		return s, nil
	}
}

func (s *ffmpegSink) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return errors.Errorf("frame is %dx%d, sink wants %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	rowLen := 4 * b.Dx()
	if img.Stride == rowLen && len(img.Pix) == rowLen*b.Dy() {
		_, err := s.stdin.Write(img.Pix)
		return errors.Wrap(err, "write frame")
	}
	// Sub-images carry padding between rows, so feed the pipe row
	// by row from the pixel offsets.
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := s.stdin.Write(img.Pix[off : off+rowLen]); err != nil {
			return errors.Wrap(err, "write frame row")
		}
	}
	return nil
}

// Close signals end of stream and waits for the encoder to flush.
// It must be called exactly once, on every exit path, or the encoder
// process leaks and the temp video stays truncated.
func (s *ffmpegSink) Close() error {
	if err := s.stdin.Close(); err != nil {
		_ = s.cmd.Wait()
		return errors.Wrap(err, "close encoder stdin")
	}
	if err := s.cmd.Wait(); err != nil {
		return errors.Errorf("encoder exit: %v: %s", err, stderrTail(s.stderr.String(), 512))
	}
	return nil
}
