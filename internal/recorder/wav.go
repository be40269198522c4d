package recorder

import (
	"encoding/binary"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// AudioSink receives raw interleaved S16LE PCM and persists it.
type AudioSink interface {
	WriteS16LE(p []byte) error
	Close() error
}

// AudioSinkFactory opens the sink an audio worker writes into.
type AudioSinkFactory func(path string, sampleRate, channels int) (AudioSink, error)

// wavSink streams PCM into a WAV file. The encoder writes a
// provisional RIFF header up front and patches the sizes on Close,
// so a sink that is never closed leaves an unreadable file behind.
type wavSink struct {
	f      *os.File
	enc    *wav.Encoder
	format *audio.Format
}

func NewWAVSink(path string, sampleRate, channels int) (AudioSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create wav file")
	}
	return &wavSink{
		f:      f,
		enc:    wav.NewEncoder(f, sampleRate, 16, channels, 1),
		format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
	}, nil
}

func (w *wavSink) WriteS16LE(p []byte) error {
	if len(p) < 2 {
		return nil
	}
	data := make([]int, len(p)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(p[2*i:])))
	}
	return errors.Wrap(w.enc.Write(&audio.IntBuffer{
		Format:         w.format,
		Data:           data,
		SourceBitDepth: 16,
	}), "write pcm chunk")
}

func (w *wavSink) Close() error {
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	if encErr != nil {
		return errors.Wrap(encErr, "finalize wav header")
	}
	return errors.Wrap(fileErr, "close wav file")
}
