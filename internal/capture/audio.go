package capture

import (
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/pkg/errors"
)

// AudioDeviceConfig selects and configures one PCM input stream.
type AudioDeviceConfig struct {
	// DeviceName picks a device whose name contains this string,
	// case-insensitively. Empty selects the backend default.
	DeviceName string
	// Loopback taps a render endpoint instead of a microphone, so
	// the stream carries what the machine is playing.
	Loopback   bool
	SampleRate int
	Channels   int
}

// AudioInput is an opened PCM stream. Samples arrive through the
// callback passed to Open as interleaved 16-bit little-endian PCM,
// on the driver's own thread.
type AudioInput interface {
	Start() error
	Close() error
}

// AudioInputOpener opens audio inputs. The buffer handed to onData is
// only valid for the duration of the call; the driver reuses it.
type AudioInputOpener interface {
	Open(cfg AudioDeviceConfig, onData func([]byte)) (AudioInput, error)
}

type malgoOpener struct{}

// NewAudioInputOpener returns the miniaudio-backed opener.
func NewAudioInputOpener() AudioInputOpener {
	return malgoOpener{}
}

type malgoInput struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	once   sync.Once
}

func (malgoOpener) Open(cfg AudioDeviceConfig, onData func([]byte)) (AudioInput, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "init audio context")
	}

	devType := malgo.Capture
	if cfg.Loopback {
		devType = malgo.Loopback
	}

	devConfig := malgo.DefaultDeviceConfig(devType)
	devConfig.Capture.Format = malgo.FormatS16
	devConfig.Capture.Channels = uint32(cfg.Channels)
	devConfig.SampleRate = uint32(cfg.SampleRate)
	devConfig.Alsa.NoMMap = 1

	var id malgo.DeviceID
	if cfg.DeviceName != "" {
		id, err = findDeviceID(ctx, devType, cfg.DeviceName)
		if err != nil {
			freeContext(ctx)
			return nil, err
		}
		devConfig.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onData(input)
		},
	}
	device, err := malgo.InitDevice(ctx.Context, devConfig, callbacks)
	if err != nil {
		freeContext(ctx)
		return nil, errors.Wrap(err, "init audio device")
	}
	return &malgoInput{ctx: ctx, device: device}, nil
}

func (in *malgoInput) Start() error {
	return errors.Wrap(in.device.Start(), "start audio device")
}

// Close stops the device and tears the context down. Idempotent, so
// the caller's error paths can invoke it unconditionally.
func (in *malgoInput) Close() error {
	in.once.Do(func() {
		_ = in.device.Stop()
		in.device.Uninit()
		freeContext(in.ctx)
	})
	return nil
}

// findDeviceID resolves a name fragment to a device ID. Loopback taps
// a render endpoint, so its candidates come from the playback list.
func findDeviceID(ctx *malgo.AllocatedContext, devType malgo.DeviceType, name string) (malgo.DeviceID, error) {
	enumType := devType
	if devType == malgo.Loopback {
		enumType = malgo.Playback
	}
	infos, err := ctx.Devices(enumType)
	if err != nil {
		return malgo.DeviceID{}, errors.Wrap(err, "enumerate audio devices")
	}
	needle := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), needle) {
			return infos[i].ID, nil
		}
	}
	return malgo.DeviceID{}, errors.Errorf("audio device %q not found", name)
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
