package mean

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/distribution"
)

// ols regresses y on the mean regressors over [lo, hi).
func (m *Model) ols(lo, hi int) ([]float64, error) {
	k := len(m.meanCols)
	if k == 0 {
		return []float64{}, nil
	}
	n := hi - lo
	if n < k {
		return nil, archerr.Configuration("%d observations cannot identify %d mean parameters", n, k)
	}
	x := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, m.rhs[lo+i])
	}
	y := mat.NewVecDense(n, append([]float64(nil), m.y[lo:hi]...))

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, archerr.Wrapf(archerr.ErrConfiguration, "mean regressors are collinear: %v", err)
	}
	return beta.RawVector().Data[:k:k], nil
}

// residsFrom returns y[t] - rhs[t]·beta for t in [lo, hi).
func (m *Model) residsFrom(beta []float64, lo, hi int) []float64 {
	out := make([]float64, hi-lo)
	for t := lo; t < hi; t++ {
		out[t-lo] = m.y[t]
		if len(beta) > 0 {
			out[t-lo] -= floats.Dot(m.rhs[t], beta)
		}
	}
	return out
}

// Resids returns the residuals of the full parameter vector over the whole
// sample. Entries before the first usable observation are NaN.
func (m *Model) Resids(params []float64) ([]float64, error) {
	mp, _, _, err := m.split(params)
	if err != nil {
		return nil, err
	}
	lo := m.firstUsable()
	out := nanSlice(len(m.y))
	copy(out[lo:], m.residsFrom(mp, lo, len(m.y)))
	return out, nil
}

// LogLikelihood evaluates the joint log-likelihood over the whole sample,
// starting the variance recursion from the backcast of the residuals at
// params.
func (m *Model) LogLikelihood(params []float64) (float64, error) {
	if err := m.validate(params); err != nil {
		return 0, err
	}
	mp, _, _, _ := m.split(params)
	lo, hi := m.firstUsable(), len(m.y)
	backcast := m.vol.Backcast(m.residsFrom(mp, lo, hi))
	ll, _, err := m.evaluate(params, lo, hi, backcast, nil)
	return ll, err
}

// evaluate computes the log-likelihood over [lo, hi). The conditional
// variances are returned; dst receives per-observation contributions when
// non-nil.
func (m *Model) evaluate(params []float64, lo, hi int, backcast float64, dst []float64) (float64, []float64, error) {
	mp, vp, dp, err := m.split(params)
	if err != nil {
		return 0, nil, err
	}
	resids := m.residsFrom(mp, lo, hi)
	sigma2 := make([]float64, len(resids))
	if err := m.vol.ComputeVariance(vp, resids, backcast, sigma2); err != nil {
		return 0, nil, err
	}
	for t, v := range sigma2 {
		if !(v > 0) || math.IsInf(v, 0) {
			return 0, nil, archerr.Numerical("conditional variance %g at %d", v, lo+t)
		}
	}
	ll, err := distribution.LogLikelihood(m.dist, dp, resids, sigma2, dst)
	if err != nil {
		return 0, nil, err
	}
	if math.IsNaN(ll) {
		return 0, nil, archerr.Numerical("log-likelihood is NaN")
	}
	return ll, sigma2, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
