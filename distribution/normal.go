package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goarch/estimate"
)

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// Normal is the standard normal distribution.
type Normal struct{}

// NewNormal returns the standard normal.
func NewNormal() *Normal {
	return &Normal{}
}

// Name returns the distribution name.
func (*Normal) Name() string { return "Normal" }

// NumParams is zero; the normal has no shape parameters.
func (*Normal) NumParams() int { return 0 }

// ParamNames is empty.
func (*Normal) ParamNames() []string { return []string{} }

// Bounds is empty.
func (*Normal) Bounds() []estimate.Bound { return []estimate.Bound{} }

// StartingValues is empty.
func (*Normal) StartingValues(_ []float64) []float64 { return []float64{} }

// Validate accepts only an empty parameter vector.
func (n *Normal) Validate(params []float64) error {
	return checkCount(n.Name(), params, 0)
}

// LogPDF writes the log-density of each standardized residual in z to dst.
func (n *Normal) LogPDF(params, z, dst []float64) error {
	if err := n.Validate(params); err != nil {
		return err
	}
	for i, v := range z {
		dst[i] = -logSqrt2Pi - 0.5*v*v
	}
	return nil
}

// PPF returns the p-quantile of the unit-variance distribution.
func (n *Normal) PPF(params []float64, p float64) (float64, error) {
	if err := n.Validate(params); err != nil {
		return 0, err
	}
	if err := checkProb(p); err != nil {
		return 0, err
	}
	return distuv.UnitNormal.Quantile(p), nil
}

// Simulate draws unit-variance innovations.
func (n *Normal) Simulate(params []float64, rng *rand.Rand, size int) ([]float64, error) {
	if err := n.Validate(params); err != nil {
		return nil, err
	}
	d := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	out := make([]float64, size)
	for i := range out {
		out[i] = d.Rand()
	}
	return out, nil
}
