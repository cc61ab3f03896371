package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// StudentsT is Student's t rescaled to unit variance. Its single parameter
// is the degrees of freedom, nu > 2.
type StudentsT struct{}

// NewStudentsT returns the standardized Student's t.
func NewStudentsT() *StudentsT {
	return &StudentsT{}
}

// Name returns the distribution name.
func (*StudentsT) Name() string { return "Standardized Student's t" }

// NumParams returns the number of shape parameters.
func (*StudentsT) NumParams() int { return 1 }

// ParamNames returns the shape parameter names.
func (*StudentsT) ParamNames() []string { return []string{"nu"} }

// Bounds keeps nu above 2.05 so the variance exists.
func (*StudentsT) Bounds() []estimate.Bound {
	return []estimate.Bound{{Lower: 2.05, Upper: 500}}
}

// StartingValues matches nu to the excess kurtosis of std.
func (*StudentsT) StartingValues(std []float64) []float64 {
	return []float64{kurtosisStart(std)}
}

// Validate returns InvalidParameter for shape parameters outside the bounds.
func (t *StudentsT) Validate(params []float64) error {
	if err := checkCount(t.Name(), params, 1); err != nil {
		return err
	}
	if nu := params[0]; !(nu > 2) || math.IsInf(nu, 0) {
		return archerr.InvalidParameter("degrees of freedom must be greater than 2, got %g", nu)
	}
	return nil
}

func scaledT(nu float64) distuv.StudentsT {
	return distuv.StudentsT{Mu: 0, Sigma: math.Sqrt((nu - 2) / nu), Nu: nu}
}

// LogPDF writes the log-density of each standardized residual in z to dst.
func (t *StudentsT) LogPDF(params, z, dst []float64) error {
	if err := t.Validate(params); err != nil {
		return err
	}
	nu := params[0]
	lg1, _ := math.Lgamma((nu + 1) / 2)
	lg2, _ := math.Lgamma(nu / 2)
	c := lg1 - lg2 - 0.5*math.Log(math.Pi*(nu-2))
	for i, v := range z {
		dst[i] = c - (nu+1)/2*math.Log1p(v*v/(nu-2))
	}
	return nil
}

// PPF returns the p-quantile of the unit-variance distribution.
func (t *StudentsT) PPF(params []float64, p float64) (float64, error) {
	if err := t.Validate(params); err != nil {
		return 0, err
	}
	if err := checkProb(p); err != nil {
		return 0, err
	}
	return scaledT(params[0]).Quantile(p), nil
}

// Simulate draws unit-variance innovations.
func (t *StudentsT) Simulate(params []float64, rng *rand.Rand, n int) ([]float64, error) {
	if err := t.Validate(params); err != nil {
		return nil, err
	}
	d := scaledT(params[0])
	d.Src = rng
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Rand()
	}
	return out, nil
}
