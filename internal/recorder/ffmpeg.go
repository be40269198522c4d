package recorder

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// CommandRunner executes an external encoder invocation and returns
// whatever it printed on stderr. Injected so assembly can be tested
// without a real encoder on the machine.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func NewCommandRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// EncoderInfo reports what the local ffmpeg install can do.
type EncoderInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	H264      bool   `json:"h264"`
	AAC       bool   `json:"aac"`
	Error     string `json:"error,omitempty"`
}

// FFmpegService probes the encoder binary used for frame sinking and
// final assembly.
type FFmpegService struct {
	path string
}

func NewFFmpegService(ffmpegPath string) *FFmpegService {
	return &FFmpegService{path: ffmpegPath}
}

func (s *FFmpegService) Path() string { return s.path }

// Probe checks that ffmpeg exists and that the codecs the assembler
// asks for are compiled in.
func (s *FFmpegService) Probe(ctx context.Context) EncoderInfo {
	var info EncoderInfo

	out, err := exec.CommandContext(ctx, s.path, "-version").Output()
	if err != nil {
		info.Error = "ffmpeg not available: " + err.Error()
		return info
	}
	info.Available = true
	line, _, _ := strings.Cut(string(out), "\n")
	info.Version = strings.TrimSpace(line)

	if enc, err := exec.CommandContext(ctx, s.path, "-hide_banner", "-encoders").Output(); err == nil {
		info.H264 = strings.Contains(string(enc), "libx264")
		info.AAC = strings.Contains(string(enc), " aac ")
	}
	return info
}

// stderrTail keeps the last n bytes of encoder output, which is
// where ffmpeg puts the actual error.
func stderrTail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
