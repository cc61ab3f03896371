package bootstrap

import (
	"math"
	"math/rand/v2"
)

// Resampler produces the indices of one bootstrap sample of size n.
type Resampler interface {
	Name() string
	Indices(rng *rand.Rand, n int) []int
}

// IID draws observations independently with replacement.
type IID struct{}

// Name identifies the resampler.
func (IID) Name() string { return "IID Bootstrap" }

// Indices draws n sample positions.
func (IID) Indices(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// Stationary is the Politis-Romano bootstrap with geometric block lengths
// of mean BlockSize. Blocks wrap around the end of the sample.
type Stationary struct {
	BlockSize float64
}

// Name identifies the resampler.
func (Stationary) Name() string { return "Stationary Bootstrap" }

// Indices draws n sample positions.
func (s Stationary) Indices(rng *rand.Rand, n int) []int {
	p := 1 / math.Max(s.BlockSize, 1)
	idx := make([]int, n)
	idx[0] = rng.IntN(n)
	for i := 1; i < n; i++ {
		if rng.Float64() < p {
			idx[i] = rng.IntN(n)
		} else {
			idx[i] = (idx[i-1] + 1) % n
		}
	}
	return idx
}

// CircularBlock draws fixed-length blocks from the sample treated as a
// circle.
type CircularBlock struct {
	BlockSize int
}

// Name identifies the resampler.
func (CircularBlock) Name() string { return "Circular Block Bootstrap" }

// Indices draws n sample positions.
func (c CircularBlock) Indices(rng *rand.Rand, n int) []int {
	b := max(c.BlockSize, 1)
	idx := make([]int, n)
	for i := 0; i < n; i += b {
		start := rng.IntN(n)
		for j := 0; j < b && i+j < n; j++ {
			idx[i+j] = (start + j) % n
		}
	}
	return idx
}
