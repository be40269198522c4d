// Package capture wraps the platform screen and audio grab layers
// behind small interfaces the recorder can substitute in tests.
package capture

import (
	"image"

	"github.com/kbinani/screenshot"
	"github.com/pkg/errors"
)

// ErrNoDisplay is returned when the host has no active display to
// record from.
var ErrNoDisplay = errors.New("no active display")

// ScreenCapturer grabs RGBA frames from a display region.
type ScreenCapturer interface {
	// PrimaryBounds returns the bounds of the primary display.
	PrimaryBounds() (image.Rectangle, error)
	// Capture grabs one frame covering region, in display coordinates.
	Capture(region image.Rectangle) (*image.RGBA, error)
}

type displayCapturer struct{}

// NewScreenCapturer returns the platform-backed screen grabber.
func NewScreenCapturer() ScreenCapturer {
	return displayCapturer{}
}

func (displayCapturer) PrimaryBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	return screenshot.GetDisplayBounds(0), nil
}

func (displayCapturer) Capture(region image.Rectangle) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(region)
	if err != nil {
		return nil, errors.Wrap(err, "capture rect")
	}
	return img, nil
}

// ClampRegion fits a requested region inside the display bounds:
// origins left of or above the bounds snap to the edge, and the size
// is cut to what remains from there. The second return is false when
// no recordable area is left.
func ClampRegion(region, bounds image.Rectangle) (image.Rectangle, bool) {
	left, top := region.Min.X, region.Min.Y
	w, h := region.Dx(), region.Dy()

	if left < bounds.Min.X {
		left = bounds.Min.X
	}
	if top < bounds.Min.Y {
		top = bounds.Min.Y
	}
	if left+w > bounds.Max.X {
		w = bounds.Max.X - left
	}
	if top+h > bounds.Max.Y {
		h = bounds.Max.Y - top
	}
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(left, top, left+w, top+h), true
}
