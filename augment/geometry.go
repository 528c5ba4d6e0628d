package augment

import (
	"fmt"

	"github.com/model-collapse/ctseg/tensor"
)

// HorizontalFlip mirrors every channel left to right.
type HorizontalFlip struct{}

// Apply implements Transform.
func (HorizontalFlip) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	out := tensor.New(t.C, t.H, t.W)
	for c := 0; c < t.C; c++ {
		for y := 0; y < t.H; y++ {
			for x := 0; x < t.W; x++ {
				out.Set(c, y, t.W-1-x, t.At(c, y, x))
			}
		}
	}
	return out, nil
}

// VerticalFlip mirrors every channel top to bottom.
type VerticalFlip struct{}

// Apply implements Transform.
func (VerticalFlip) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	out := tensor.New(t.C, t.H, t.W)
	for c := 0; c < t.C; c++ {
		src, dst := t.Channel(c), out.Channel(c)
		for y := 0; y < t.H; y++ {
			copy(dst[(t.H-1-y)*t.W:(t.H-y)*t.W], src[y*t.W:(y+1)*t.W])
		}
	}
	return out, nil
}

// Random applies Transform with probability P.
type Random struct {
	Transform Transform
	P         float64
	Source    *Source
}

// RandomHorizontalFlip flips with probability p.
func RandomHorizontalFlip(p float64, src *Source) *Random {
	return &Random{Transform: HorizontalFlip{}, P: p, Source: src}
}

// RandomVerticalFlip flips with probability p.
func RandomVerticalFlip(p float64, src *Source) *Random {
	return &Random{Transform: VerticalFlip{}, P: p, Source: src}
}

// Apply implements Transform.
func (r *Random) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	if r.Source.Float64() < r.P {
		return r.Transform.Apply(t)
	}
	return t, nil
}

// Crop cuts the Height x Width window whose top-left corner is (X, Y).
type Crop struct {
	X, Y          int
	Height, Width int
}

// Apply implements Transform.
func (cr Crop) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	if cr.X < 0 || cr.Y < 0 || cr.Height < 0 || cr.Width < 0 || cr.X+cr.Width > t.W || cr.Y+cr.Height > t.H {
		return nil, fmt.Errorf("augment: crop %dx%d at (%d,%d) outside %dx%d", cr.Height, cr.Width, cr.X, cr.Y, t.H, t.W)
	}
	out := tensor.New(t.C, cr.Height, cr.Width)
	for c := 0; c < t.C; c++ {
		src, dst := t.Channel(c), out.Channel(c)
		for y := 0; y < cr.Height; y++ {
			row := (cr.Y+y)*t.W + cr.X
			copy(dst[y*cr.Width:(y+1)*cr.Width], src[row:row+cr.Width])
		}
	}
	return out, nil
}

// RandomCrop cuts a Height x Width window at a uniformly random position.
type RandomCrop struct {
	Height, Width int
	Source        *Source
}

// Apply implements Transform. The input must be at least as large as the
// window.
func (rc *RandomCrop) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	if rc.Height > t.H || rc.Width > t.W {
		return nil, fmt.Errorf("augment: crop size %dx%d larger than input %dx%d", rc.Height, rc.Width, t.H, t.W)
	}
	y := rc.Source.Intn(t.H - rc.Height + 1)
	x := rc.Source.Intn(t.W - rc.Width + 1)
	return Crop{X: x, Y: y, Height: rc.Height, Width: rc.Width}.Apply(t)
}
