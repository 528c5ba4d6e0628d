package dataset

import (
	"fmt"
	"math/rand"

	"github.com/model-collapse/ctseg/tensor"
)

// Source is anything addressable like a Dataset.
type Source interface {
	Len() int
	Get(i int) (img, mask *tensor.Tensor, err error)
}

// RandomSplit partitions [0, n) into disjoint train and validation index
// sets. The train set holds floor(trainFraction*n) indices. The same seed
// always gives the same partition.
func RandomSplit(n int, trainFraction float64, seed int64) (train, val []int, err error) {
	if n < 0 {
		return nil, nil, fmt.Errorf("dataset: split of %d items", n)
	}
	if !(trainFraction >= 0 && trainFraction <= 1) {
		return nil, nil, fmt.Errorf("dataset: train fraction %v not in [0,1]", trainFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	k := int(trainFraction * float64(n))
	return perm[:k:k], perm[k:], nil
}

// Subset exposes selected indices of a Source as a Source of its own.
type Subset struct {
	src     Source
	indices []int
}

// NewSubset returns the view of src at indices. Indices are validated
// against src.Len().
func NewSubset(src Source, indices []int) (*Subset, error) {
	n := src.Len()
	for _, i := range indices {
		if i < -n || i >= n {
			return nil, fmt.Errorf("%w: subset index %d for length %d", ErrIndexOutOfRange, i, n)
		}
	}
	return &Subset{src: src, indices: append([]int(nil), indices...)}, nil
}

// Len implements Source.
func (s *Subset) Len() int { return len(s.indices) }

// Indices returns the underlying indices in order.
func (s *Subset) Indices() []int { return append([]int(nil), s.indices...) }

// Get implements Source. Negative i counts from the end of the subset.
func (s *Subset) Get(i int) (*tensor.Tensor, *tensor.Tensor, error) {
	n := len(s.indices)
	j := i
	if j < 0 {
		j += n
	}
	if j < 0 || j >= n {
		return nil, nil, fmt.Errorf("%w: %d not in [%d,%d)", ErrIndexOutOfRange, i, -n, n)
	}
	return s.src.Get(s.indices[j])
}
