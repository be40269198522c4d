package capture

import (
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/pkg/errors"
)

// Device describes one audio endpoint visible to the backend.
type Device struct {
	Name     string `json:"name"`
	Default  bool   `json:"default"`
	Loopback bool   `json:"loopback"`
}

// DeviceList groups endpoints by direction. Capture devices are
// microphones; playback devices are the loopback candidates for
// system audio, names like "Stereo Mix" or "Monitor of ...".
type DeviceList struct {
	Capture  []Device `json:"capture"`
	Playback []Device `json:"playback"`
}

// ListDevices enumerates the host's audio endpoints.
func ListDevices() (*DeviceList, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "init audio context")
	}
	defer freeContext(ctx)

	captures, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate capture devices")
	}
	playbacks, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate playback devices")
	}

	list := &DeviceList{}
	for i := range captures {
		list.Capture = append(list.Capture, Device{
			Name:    captures[i].Name(),
			Default: captures[i].IsDefault != 0,
		})
	}
	for i := range playbacks {
		list.Playback = append(list.Playback, Device{
			Name:     playbacks[i].Name(),
			Default:  playbacks[i].IsDefault != 0,
			Loopback: true,
		})
	}
	return list, nil
}

// MatchDevice finds the first device whose name contains name,
// case-insensitively.
func MatchDevice(devices []Device, name string) (Device, bool) {
	needle := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, true
		}
	}
	return Device{}, false
}
