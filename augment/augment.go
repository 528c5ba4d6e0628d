// Package augment applies geometric transforms to channel-first tensors.
//
// Transforms here only move pixels (flip, crop); every channel receives the
// same movement. Image and mask are augmented together by concatenating them
// along the channel axis, transforming once and splitting again, see Joint.
package augment

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/model-collapse/ctseg/tensor"
)

// Transform maps a [C, H, W] tensor to a [C, H', W'] tensor.
type Transform interface {
	Apply(t *tensor.Tensor) (*tensor.Tensor, error)
}

// Func adapts a function to Transform.
type Func func(t *tensor.Tensor) (*tensor.Tensor, error)

// Apply implements Transform.
func (f Func) Apply(t *tensor.Tensor) (*tensor.Tensor, error) { return f(t) }

// Compose applies transforms in order.
type Compose []Transform

// Apply implements Transform.
func (c Compose) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for _, tr := range c {
		if t, err = tr.Apply(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Joint applies tr to image and mask with one shared random draw and
// returns them split back apart. A nil tr returns the inputs unchanged.
func Joint(tr Transform, image, mask *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	if tr == nil {
		return image, mask, nil
	}

	merged, err := tensor.Concat(image, mask)
	if err != nil {
		return nil, nil, err
	}
	out, err := tr.Apply(merged)
	if err != nil {
		return nil, nil, err
	}
	if out.C != merged.C {
		return nil, nil, fmt.Errorf("augment: transform changed channel count %d -> %d", merged.C, out.C)
	}
	return out.Split(image.C)
}

// Source is a seeded random source safe for concurrent use.
type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource returns a Source seeded with seed.
func NewSource(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a number in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Intn returns a number in [0, n).
func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}
