package recorder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AssemblyInput is one temporary artifact considered for the final
// mux. MinBytes guards against files that are nothing but a container
// header, left behind by a track that opened its file and then died.
type AssemblyInput struct {
	Path     string
	System   bool
	Outcome  CaptureOutcome
	MinBytes int64
}

// Usable reports whether the artifact may feed the encoder: its
// worker finished successfully and the file on disk is big enough to
// hold real data. The size check also covers workers that missed the
// join deadline, whose outcome cannot be trusted.
func (in AssemblyInput) Usable() bool {
	if in.Outcome != OutcomeSuccess || in.Path == "" {
		return false
	}
	fi, err := os.Stat(in.Path)
	return err == nil && fi.Size() > in.MinBytes
}

type assemblyAudio struct {
	path   string
	system bool
}

// AssemblyResult reports what the encoder run produced. On failure
// Kept lists the temporaries left on disk for inspection.
type AssemblyResult struct {
	FinalPath string   `json:"final_path,omitempty"`
	Command   []string `json:"-"`
	AudioUsed int      `json:"audio_used"`
	Stderr    string   `json:"stderr,omitempty"`
	Kept      []string `json:"kept,omitempty"`
}

// Assembler synchronizes and muxes the temporary artifacts into the
// final container by shelling out to ffmpeg. It never runs while
// capture is still going; the session calls it after the join.
type Assembler struct {
	ffmpegPath string
	runner     CommandRunner
	log        *logrus.Entry
}

func NewAssembler(ffmpegPath string, runner CommandRunner, log *logrus.Entry) *Assembler {
	return &Assembler{ffmpegPath: ffmpegPath, runner: runner, log: log}
}

// Assemble builds and executes the encoder invocation. Audio inputs
// keep a fixed order, microphone before system audio. On success all
// temporaries are deleted, including paths that were never created;
// on failure everything stays on disk and the encoder diagnostics
// come back in the result alongside the error.
func (a *Assembler) Assemble(ctx context.Context, video, mic, sys AssemblyInput, offset time.Duration, finalPath string) (*AssemblyResult, error) {
	temps := []string{video.Path, mic.Path, sys.Path}

	if !video.Usable() {
		a.removeAll(temps)
		return nil, errors.New("video artifact unusable, nothing to assemble")
	}

	var audio []assemblyAudio
	for _, in := range []AssemblyInput{mic, sys} {
		if in.Usable() {
			audio = append(audio, assemblyAudio{path: in.Path, system: in.System})
		}
	}

	args := buildEncoderArgs(video.Path, audio, offset, finalPath)
	a.log.WithField("args", strings.Join(args, " ")).Debug("assembling final output")

	stderr, err := a.runner.Run(ctx, a.ffmpegPath, args...)
	if err != nil {
		kept := existingPaths(temps)
		return &AssemblyResult{
				Command:   args,
				AudioUsed: len(audio),
				Stderr:    stderrTail(stderr, 2048),
				Kept:      kept,
			},
			errors.Wrapf(err, "encoder failed, temps kept: %s", strings.Join(kept, ", "))
	}

	a.removeAll(temps)
	return &AssemblyResult{FinalPath: finalPath, Command: args, AudioUsed: len(audio)}, nil
}

// buildEncoderArgs translates artifact paths and alignment parameters
// into the encoder argument list. Every stream's timeline is reset to
// zero to strip start-up skew; the system-audio stream additionally
// gets shifted by offset (negative trims its head so it plays
// earlier, positive delays it). Two audio inputs are mixed into one
// output track. Video is re-encoded, not copied, so its timestamps
// are rewritten consistently with the audio correction.
func buildEncoderArgs(videoPath string, audio []assemblyAudio, offset time.Duration, finalPath string) []string {
	args := []string{"-y", "-i", videoPath}
	for _, a := range audio {
		args = append(args, "-i", a.path)
	}

	filters := []string{"[0:v]setpts=PTS-STARTPTS[vout]"}
	switch len(audio) {
	case 1:
		filters = append(filters, audioChain(1, audio[0].system, offset, "aout"))
	case 2:
		filters = append(filters,
			audioChain(1, audio[0].system, offset, "a0"),
			audioChain(2, audio[1].system, offset, "a1"),
			"[a0][a1]amix=inputs=2:duration=longest:dropout_transition=0[aout]")
	}

	args = append(args, "-filter_complex", strings.Join(filters, ";"), "-map", "[vout]")
	if len(audio) > 0 {
		args = append(args, "-map", "[aout]", "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	return append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		finalPath,
	)
}

func audioChain(idx int, system bool, offset time.Duration, out string) string {
	chain := fmt.Sprintf("[%d:a]asetpts=PTS-STARTPTS", idx)
	if system && offset != 0 {
		if offset < 0 {
			sec := float64(-offset) / float64(time.Second)
			chain += fmt.Sprintf(",atrim=start=%.3f,asetpts=PTS-STARTPTS", sec)
		} else {
			chain += fmt.Sprintf(",adelay=%d:all=1", offset.Milliseconds())
		}
	}
	return chain + "[" + out + "]"
}

// removeAll clears the session temporaries. Some of the paths were
// never created, so remove errors carry no information.
func (a *Assembler) removeAll(paths []string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}

func existingPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
