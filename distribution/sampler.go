package distribution

import "math/rand/v2"

// Sampler binds a distribution, its parameters and a private generator.
// A Sampler must not be shared between goroutines.
type Sampler struct {
	dist   Distribution
	params []float64
	rng    *rand.Rand
}

// NewSampler validates params and returns a Sampler drawing from rng.
func NewSampler(d Distribution, params []float64, rng *rand.Rand) (*Sampler, error) {
	if err := d.Validate(params); err != nil {
		return nil, err
	}
	return &Sampler{dist: d, params: append([]float64(nil), params...), rng: rng}, nil
}

// Draw returns n standardized innovations.
func (s *Sampler) Draw(n int) ([]float64, error) {
	return s.dist.Simulate(s.params, s.rng, n)
}
