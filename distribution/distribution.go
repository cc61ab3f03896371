package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// Distribution is a standardized (zero mean, unit variance) innovation law.
type Distribution interface {
	Name() string
	NumParams() int
	ParamNames() []string
	Bounds() []estimate.Bound
	// StartingValues guesses shape parameters from standardized residuals.
	StartingValues(std []float64) []float64
	// Validate returns an InvalidParameter error when params lie outside
	// the support.
	Validate(params []float64) error
	// LogPDF writes the log-density of each element of z into dst.
	LogPDF(params, z, dst []float64) error
	// PPF is the quantile function.
	PPF(params []float64, p float64) (float64, error)
	// Simulate draws n innovations using rng.
	Simulate(params []float64, rng *rand.Rand, n int) ([]float64, error)
}

// Kind names a distribution family.
type Kind string

const (
	KindNormal      Kind = "normal"
	KindStudentsT   Kind = "t"
	KindSkewStudent Kind = "skewt"
	KindGED         Kind = "ged"
)

// New returns the distribution for kind.
func New(kind Kind) (Distribution, error) {
	switch kind {
	case KindNormal, "":
		return NewNormal(), nil
	case KindStudentsT:
		return NewStudentsT(), nil
	case KindSkewStudent:
		return NewSkewStudent(), nil
	case KindGED:
		return NewGED(), nil
	}
	return nil, archerr.Configuration("unknown distribution %q", kind)
}

// Block returns the parameter block of d for an estimate.Layout.
func Block(d Distribution) estimate.Block {
	return estimate.Block{
		Name:   "distribution",
		Names:  d.ParamNames(),
		Bounds: d.Bounds(),
	}
}

// LogLikelihood returns the log-likelihood of residuals resids with
// conditional variances sigma2 under d. When dst is non-nil the
// per-observation contributions are written into it.
func LogLikelihood(d Distribution, params, resids, sigma2, dst []float64) (float64, error) {
	n := len(resids)
	if len(sigma2) != n {
		return 0, archerr.ShapeMismatch("%d residuals but %d variances", n, len(sigma2))
	}
	z := make([]float64, n)
	for i := range resids {
		z[i] = resids[i] / math.Sqrt(sigma2[i])
	}
	lls := dst
	if lls == nil {
		lls = make([]float64, n)
	}
	if err := d.LogPDF(params, z, lls); err != nil {
		return 0, err
	}
	total := 0.0
	for i := range lls {
		lls[i] -= 0.5 * math.Log(sigma2[i])
		total += lls[i]
	}
	return total, nil
}

func checkCount(name string, params []float64, want int) error {
	if len(params) != want {
		return archerr.InvalidParameter("%s expects %d parameters, got %d", name, want, len(params))
	}
	return nil
}

func checkProb(p float64) error {
	if !(p > 0 && p < 1) {
		return archerr.InvalidParameter("probability %g outside (0, 1)", p)
	}
	return nil
}

// kurtosisStart maps sample kurtosis to a Student-t degrees-of-freedom
// guess.
func kurtosisStart(std []float64) float64 {
	if len(std) < 4 {
		return 12
	}
	k := stat.ExKurtosis(std, nil) + 3
	if math.IsNaN(k) || k <= 3.75 {
		return 12
	}
	return math.Max((4*k-6)/(k-3), 4)
}
