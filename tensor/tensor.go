// Package tensor holds channel-first float32 image data.
package tensor

import (
	"fmt"
	"image"
)

// Tensor is a [C, H, W] array stored contiguously, channel-major.
type Tensor struct {
	C, H, W int
	Data    []float32
}

// New returns a zeroed tensor.
func New(c, h, w int) *Tensor {
	return &Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

// Shape returns [C, H, W].
func (t *Tensor) Shape() [3]int { return [3]int{t.C, t.H, t.W} }

func (t *Tensor) offset(c, y, x int) int { return (c*t.H+y)*t.W + x }

// At returns the element at channel c, row y, column x.
func (t *Tensor) At(c, y, x int) float32 { return t.Data[t.offset(c, y, x)] }

// Set stores v at channel c, row y, column x.
func (t *Tensor) Set(c, y, x int, v float32) { t.Data[t.offset(c, y, x)] = v }

// Channel returns the H*W plane of channel c. It aliases t.Data.
func (t *Tensor) Channel(c int) []float32 {
	n := t.H * t.W
	return t.Data[c*n : (c+1)*n]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{C: t.C, H: t.H, W: t.W, Data: append([]float32(nil), t.Data...)}
}

// Concat stacks a's channels followed by b's.
func Concat(a, b *Tensor) (*Tensor, error) {
	if a.H != b.H || a.W != b.W {
		return nil, fmt.Errorf("tensor: concat %v with %v: spatial size differs", a.Shape(), b.Shape())
	}
	out := &Tensor{C: a.C + b.C, H: a.H, W: a.W, Data: make([]float32, 0, len(a.Data)+len(b.Data))}
	out.Data = append(out.Data, a.Data...)
	out.Data = append(out.Data, b.Data...)
	return out, nil
}

// Split returns channels [0, c) and [c, C) as independent tensors.
func (t *Tensor) Split(c int) (*Tensor, *Tensor, error) {
	if c < 0 || c > t.C {
		return nil, nil, fmt.Errorf("tensor: split %v at channel %d", t.Shape(), c)
	}
	n := c * t.H * t.W
	head := &Tensor{C: c, H: t.H, W: t.W, Data: append([]float32(nil), t.Data[:n]...)}
	tail := &Tensor{C: t.C - c, H: t.H, W: t.W, Data: append([]float32(nil), t.Data[n:]...)}
	return head, tail, nil
}

// FromHWC converts interleaved [H, W, C] bytes to a channel-first tensor.
// A single-channel image is the C = 1 case.
func FromHWC(h, w, c int, pix []uint8) (*Tensor, error) {
	if len(pix) != h*w*c {
		return nil, fmt.Errorf("tensor: %d bytes for %dx%dx%d", len(pix), h, w, c)
	}
	t := New(c, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := (y*w + x) * c
			for k := 0; k < c; k++ {
				t.Set(k, y, x, float32(pix[base+k]))
			}
		}
	}
	return t, nil
}

// FromGray broadcasts a grayscale image into channels identical planes.
func FromGray(img *image.Gray, channels int) *Tensor {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	t := New(channels, h, w)
	plane := t.Channel(0)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, v := range row {
			plane[y*w+x] = float32(v)
		}
	}
	for c := 1; c < channels; c++ {
		copy(t.Channel(c), plane)
	}
	return t
}

// FromPlanes builds a tensor from per-channel row-major byte planes.
func FromPlanes(h, w int, planes [][]uint8) (*Tensor, error) {
	t := New(len(planes), h, w)
	for c, p := range planes {
		if len(p) != h*w {
			return nil, fmt.Errorf("tensor: plane %d has %d bytes, want %d", c, len(p), h*w)
		}
		dst := t.Channel(c)
		for i, v := range p {
			dst[i] = float32(v)
		}
	}
	return t, nil
}
