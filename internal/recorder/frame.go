package recorder

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// FrameTransform converts captured frames to the session's fixed
// output size. In letterbox mode the frame is scaled to fit inside
// the target and the remainder is padded black; otherwise frames are
// only rescaled when the capture size drifts from the expected one.
type FrameTransform struct {
	width     int
	height    int
	letterbox bool
	scaler    draw.Scaler
}

func NewFrameTransform(letterbox bool, outWidth, outHeight int) *FrameTransform {
	return &FrameTransform{
		width:     outWidth,
		height:    outHeight,
		letterbox: letterbox,
		scaler:    draw.ApproxBiLinear,
	}
}

// Size reports the fixed output dimensions every frame will have
// after Apply. The sink is opened with these.
func (t *FrameTransform) Size() (int, int) { return t.width, t.height }

// Apply returns the frame at the output size. The input is returned
// untouched when it already matches, so callers must not mutate the
// result while the source buffer is still live.
func (t *FrameTransform) Apply(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == t.width && h == t.height {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	if !t.letterbox {
		t.scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		return dst
	}

	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, draw.Src)
	t.scaler.Scale(dst, letterboxRect(w, h, t.width, t.height), src, b, draw.Src, nil)
	return dst
}

// letterboxRect places a w×h frame inside a tw×th canvas. Aspect
// ratios are compared with integer cross multiplication so odd sizes
// cannot drift through float rounding. When the padding is odd the
// spare pixel goes to the bottom or right edge.
func letterboxRect(w, h, tw, th int) image.Rectangle {
	switch {
	case w*th > tw*h:
		// Source is wider than the target, bars above and below.
		newH := tw * h / w
		top := (th - newH) / 2
		return image.Rect(0, top, tw, top+newH)
	case w*th < tw*h:
		// Source is taller than the target, bars left and right.
		newW := th * w / h
		left := (tw - newW) / 2
		return image.Rect(left, 0, left+newW, th)
	default:
		return image.Rect(0, 0, tw, th)
	}
}
