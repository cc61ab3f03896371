package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// SkewStudent is Hansen's (1994) skewed Student's t with parameters
// eta (tail, > 2) and lambda (asymmetry, in (-1, 1)).
type SkewStudent struct{}

// NewSkewStudent returns Hansen's skewed t.
func NewSkewStudent() *SkewStudent {
	return &SkewStudent{}
}

// Name returns the distribution name.
func (*SkewStudent) Name() string { return "Standardized Skew Student's t" }

// NumParams returns the number of shape parameters.
func (*SkewStudent) NumParams() int { return 2 }

// ParamNames returns the shape parameter names.
func (*SkewStudent) ParamNames() []string { return []string{"eta", "lambda"} }

// Bounds keeps eta above 2.05 and lambda inside (-1, 1).
func (*SkewStudent) Bounds() []estimate.Bound {
	return []estimate.Bound{{Lower: 2.05, Upper: 300}, {Lower: -0.999, Upper: 0.999}}
}

// StartingValues matches eta to the excess kurtosis of std with no skew.
func (*SkewStudent) StartingValues(std []float64) []float64 {
	return []float64{kurtosisStart(std), 0}
}

// Validate returns InvalidParameter for shape parameters outside the bounds.
func (s *SkewStudent) Validate(params []float64) error {
	if err := checkCount(s.Name(), params, 2); err != nil {
		return err
	}
	eta, lam := params[0], params[1]
	if !(eta > 2) || math.IsInf(eta, 0) {
		return archerr.InvalidParameter("eta must be greater than 2, got %g", eta)
	}
	if !(lam > -1 && lam < 1) {
		return archerr.InvalidParameter("lambda must be in (-1, 1), got %g", lam)
	}
	return nil
}

// constants returns log c, a and b of Hansen's density.
func (*SkewStudent) constants(eta, lam float64) (logC, a, b float64) {
	lg1, _ := math.Lgamma((eta + 1) / 2)
	lg2, _ := math.Lgamma(eta / 2)
	logC = lg1 - lg2 - 0.5*math.Log(math.Pi*(eta-2))
	a = 4 * lam * math.Exp(logC) * (eta - 2) / (eta - 1)
	b = math.Sqrt(1 + 3*lam*lam - a*a)
	return logC, a, b
}

// LogPDF writes the log-density of each standardized residual in z to dst.
func (s *SkewStudent) LogPDF(params, z, dst []float64) error {
	if err := s.Validate(params); err != nil {
		return err
	}
	eta, lam := params[0], params[1]
	logC, a, b := s.constants(eta, lam)
	logB := math.Log(b)
	for i, v := range z {
		side := 1 + lam
		if v < -a/b {
			side = 1 - lam
		}
		u := (b*v + a) / side
		dst[i] = logB + logC - (eta+1)/2*math.Log1p(u*u/(eta-2))
	}
	return nil
}

// PPF returns the p-quantile of the unit-variance distribution.
func (s *SkewStudent) PPF(params []float64, p float64) (float64, error) {
	if err := s.Validate(params); err != nil {
		return 0, err
	}
	if err := checkProb(p); err != nil {
		return 0, err
	}
	return s.ppf(params[0], params[1], p), nil
}

func (s *SkewStudent) ppf(eta, lam, p float64) float64 {
	_, a, b := s.constants(eta, lam)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: eta}
	split := (1 - lam) / 2
	var q float64
	if p < split {
		q = t.Quantile(p/(1-lam)) * (1 - lam)
	} else {
		q = t.Quantile(0.5+(p-split)/(1+lam)) * (1 + lam)
	}
	return (q*math.Sqrt(1-2/eta) - a) / b
}

// Simulate draws by inverting uniform variates.
func (s *SkewStudent) Simulate(params []float64, rng *rand.Rand, n int) ([]float64, error) {
	if err := s.Validate(params); err != nil {
		return nil, err
	}
	u := distuv.Uniform{Min: 0, Max: 1, Src: rng}
	out := make([]float64, n)
	for i := range out {
		p := u.Rand()
		for p == 0 {
			p = u.Rand()
		}
		out[i] = s.ppf(params[0], params[1], p)
	}
	return out, nil
}
