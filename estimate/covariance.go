package estimate

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/sartorproj/goarch/archerr"
)

// CovarianceType selects the parameter covariance estimator.
type CovarianceType int

const (
	// Classic is the inverse Hessian of the negative log-likelihood.
	Classic CovarianceType = iota
	// Robust is the Bollerslev-Wooldridge sandwich H⁻¹ (S'S) H⁻¹.
	Robust
)

// String returns "classic" or "robust".
func (c CovarianceType) String() string {
	if c == Robust {
		return "robust"
	}
	return "classic"
}

// Covariance estimates the covariance of the estimator at x. Derivatives are
// taken in coordinates scaled by max(|x_i|, 1e-3) so that every parameter
// gets a relative step.
func Covariance(p Problem, x []float64, kind CovarianceType) (*mat.SymDense, error) {
	n := len(x)
	if n == 0 {
		return nil, nil
	}
	scale := make([]float64, n)
	u0 := make([]float64, n)
	for i, v := range x {
		scale[i] = math.Max(math.Abs(v), 1e-3)
		u0[i] = v / scale[i]
	}
	unscale := func(u []float64) []float64 {
		out := make([]float64, n)
		for i := range u {
			out[i] = u[i] * scale[i]
		}
		return out
	}

	nll := func(u []float64) float64 {
		f, err := p.NegLogLik(unscale(u))
		if err != nil {
			return math.NaN()
		}
		return f
	}

	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, nll, u0, &fd.Settings{Formula: fd.Central})
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := hess.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, archerr.Numerical("Hessian entry (%d,%d) is not finite", i, j)
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return nil, archerr.Numerical("Hessian is singular or not positive definite")
	}
	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, archerr.Numerical("inverting Hessian: %v", err)
	}

	covU := inv
	if kind == Robust {
		if p.LogLikObs == nil || p.NObs == 0 {
			return nil, archerr.Configuration("robust covariance needs per-observation log-likelihoods")
		}
		scores := mat.NewDense(p.NObs, n, nil)
		fd.Jacobian(scores, func(dst, u []float64) {
			if err := p.LogLikObs(unscale(u), dst); err != nil {
				for i := range dst {
					dst[i] = math.NaN()
				}
			}
		}, u0, &fd.JacobianSettings{Formula: fd.Central})

		var opg mat.SymDense
		opg.SymOuterK(1, scores.T())
		var tmp, sandwich mat.Dense
		tmp.Mul(inv, &opg)
		sandwich.Mul(&tmp, inv)
		covU = mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				covU.SetSym(i, j, 0.5*(sandwich.At(i, j)+sandwich.At(j, i)))
			}
		}
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, covU.At(i, j)*scale[i]*scale[j])
		}
	}
	return cov, nil
}

// StdErrors returns the square roots of the covariance diagonal.
func StdErrors(cov *mat.SymDense) []float64 {
	if cov == nil {
		return nil
	}
	n := cov.SymmetricDim()
	se := make([]float64, n)
	for i := range se {
		se[i] = math.Sqrt(cov.At(i, i))
	}
	return se
}
