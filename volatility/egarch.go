package volatility

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

var (
	sqrt2OverPi = math.Sqrt(2 / math.Pi)
	lnSigmaMax  = math.Log(math.MaxFloat64) - 0.1
)

// Egarch is Nelson's exponential GARCH(p, o, q):
//
//	ln σ²_t = ω + Σ α_i (|z_{t-i}| - √(2/π)) + Σ γ_j z_{t-j} + Σ β_k ln σ²_{t-k}
type Egarch struct {
	p, o, q int
}

// NewEGARCH returns EGARCH(p, o, q).
func NewEGARCH(p, o, q int) (*Egarch, error) {
	if p < 0 || o < 0 || q < 0 {
		return nil, archerr.Configuration("lag orders must be non-negative, got p=%d o=%d q=%d", p, o, q)
	}
	if p+o == 0 {
		return nil, archerr.Configuration("EGARCH needs p or o to be positive")
	}
	return &Egarch{p: p, o: o, q: q}, nil
}

// Name returns the process name.
func (e *Egarch) Name() string { return "EGARCH" }

// String returns the name with the model orders.
func (e *Egarch) String() string {
	return fmt.Sprintf("EGARCH(p: %d, o: %d, q: %d)", e.p, e.o, e.q)
}

// NumParams returns the number of parameters.
func (e *Egarch) NumParams() int { return 1 + e.p + e.o + e.q }

// MinHistory returns the longest lag the recursion reads.
func (e *Egarch) MinHistory() int { return max(e.p, e.o, e.q) }

// ParamNames returns the parameter names in layout order.
func (e *Egarch) ParamNames() []string {
	names := []string{"omega"}
	for i := 1; i <= e.p; i++ {
		names = append(names, fmt.Sprintf("alpha[%d]", i))
	}
	for i := 1; i <= e.o; i++ {
		names = append(names, fmt.Sprintf("gamma[%d]", i))
	}
	for i := 1; i <= e.q; i++ {
		names = append(names, fmt.Sprintf("beta[%d]", i))
	}
	return names
}

// Bounds leaves ω, α and γ free and keeps each β in [0, 1].
func (e *Egarch) Bounds(_ []float64) []estimate.Bound {
	bounds := make([]estimate.Bound, 0, e.NumParams())
	for i := 0; i < 1+e.p+e.o; i++ {
		bounds = append(bounds, estimate.Unbounded)
	}
	for i := 0; i < e.q; i++ {
		bounds = append(bounds, estimate.Bound{Lower: 0, Upper: 1})
	}
	return bounds
}

// Constraints returns Σβ <= 1.
func (e *Egarch) Constraints() estimate.Constraints {
	var cons estimate.Constraints
	if e.q == 0 {
		return cons
	}
	row := make([]float64, e.NumParams())
	for i := 1 + e.p + e.o; i < len(row); i++ {
		row[i] = -1
	}
	cons.Add(row, -1)
	return cons
}

// Backcast is the log of the EWMA backcast of squared residuals.
func (e *Egarch) Backcast(resids []float64) float64 {
	return math.Log(ewmaBackcast(powAbs(resids, 2)))
}

// Validate returns InvalidParameter for parameters outside the bounds or constraints.
func (e *Egarch) Validate(params []float64) error {
	if len(params) != e.NumParams() {
		return archerr.InvalidParameter("EGARCH expects %d parameters, got %d", e.NumParams(), len(params))
	}
	names := e.ParamNames()
	if err := checkFinite(names, params); err != nil {
		return err
	}
	for i := 1 + e.p + e.o; i < len(params); i++ {
		if params[i] < 0 || params[i] > 1 {
			return archerr.InvalidParameter("%s must be in [0, 1], got %g", names[i], params[i])
		}
	}
	return nil
}

// egState mirrors state for the log recursion.
type egState struct {
	absZ []float64 // |z| - √(2/π)
	z    []float64
	lns  []float64
}

func (e *Egarch) newState(n int, initial float64) *egState {
	m := e.MinHistory()
	s := &egState{absZ: make([]float64, m+n), z: make([]float64, m+n), lns: make([]float64, m+n)}
	for i := 0; i < m; i++ {
		s.lns[i] = initial
	}
	return s
}

func (e *Egarch) step(params []float64, s *egState, j int) float64 {
	v := params[0]
	for i := 1; i <= e.p; i++ {
		v += params[i] * s.absZ[j-i]
	}
	for i := 1; i <= e.o; i++ {
		v += params[e.p+i] * s.z[j-i]
	}
	for i := 1; i <= e.q; i++ {
		v += params[e.p+e.o+i] * s.lns[j-i]
	}
	return math.Min(v, lnSigmaMax)
}

func (e *Egarch) record(s *egState, j int, lns, z float64) {
	s.lns[j] = lns
	s.z[j] = z
	s.absZ[j] = math.Abs(z) - sqrt2OverPi
}

func (e *Egarch) run(params, resids []float64, backcast float64, sigma2 []float64) (*egState, error) {
	m := e.MinHistory()
	s := e.newState(len(resids), backcast)
	for t, r := range resids {
		j := m + t
		lns := e.step(params, s, j)
		v := math.Exp(lns)
		if math.IsNaN(lns) || !(v > 0) {
			return nil, archerr.Numerical("log variance %g at index %d is not finite", lns, t)
		}
		sigma2[t] = v
		e.record(s, j, lns, r/math.Sqrt(v))
	}
	return s, nil
}

// ComputeVariance fills sigma2 with the conditional variance of resids.
func (e *Egarch) ComputeVariance(params, resids []float64, backcast float64, sigma2 []float64) error {
	if err := checkLengths(params, e.NumParams(), resids, sigma2); err != nil {
		return err
	}
	_, err := e.run(params, resids, backcast, sigma2)
	return err
}

// StartingValues grid-searches the persistence with a Gaussian likelihood.
func (e *Egarch) StartingValues(resids []float64) []float64 {
	target := meanOrOne(powAbs(resids, 2))
	alphas := []float64{0}
	if e.p > 0 {
		alphas = []float64{0.01, 0.05, 0.1, 0.2}
	}
	gammas := []float64{0}
	if e.o > 0 {
		gammas = []float64{-0.1, 0, 0.1}
	}
	betas := []float64{0}
	if e.q > 0 {
		betas = []float64{0.5, 0.7, 0.9, 0.98}
	}
	backcast := e.Backcast(resids)
	sigma2 := make([]float64, len(resids))
	var best []float64
	bestLL := math.Inf(-1)
	for _, a := range alphas {
		for _, g := range gammas {
			for _, b := range betas {
				sv := make([]float64, e.NumParams())
				sv[0] = math.Log(target) * (1 - b)
				for i := 1; i <= e.p; i++ {
					sv[i] = a / float64(e.p)
				}
				for i := 1; i <= e.o; i++ {
					sv[e.p+i] = g / float64(e.o)
				}
				for i := 1; i <= e.q; i++ {
					sv[e.p+e.o+i] = b / float64(e.q)
				}
				if best == nil {
					best = sv
				}
				if _, err := e.run(sv, resids, backcast, sigma2); err != nil {
					continue
				}
				if ll := gaussianLogLik(resids, sigma2); ll > bestLL {
					bestLL = ll
					best = sv
				}
			}
		}
	}
	return best
}

func (e *Egarch) betaSum(params []float64) float64 {
	total := 0.0
	for i := 1 + e.p + e.o; i < len(params); i++ {
		total += params[i]
	}
	return total
}

// Simulate returns n residuals and variances after discarding burn draws.
func (e *Egarch) Simulate(params []float64, n, burn int, shocks ShockSource) ([]float64, []float64, error) {
	if err := e.Validate(params); err != nil {
		return nil, nil, err
	}
	if n < 1 || burn < 0 {
		return nil, nil, archerr.Configuration("cannot simulate %d observations with burn %d", n, burn)
	}
	initial := params[0]
	if b := e.betaSum(params); b < 1 {
		initial = params[0] / (1 - b)
	}
	total := n + burn
	z, err := shocks.Draw(total)
	if err != nil {
		return nil, nil, err
	}
	m := e.MinHistory()
	s := e.newState(total, initial)
	resids := make([]float64, total)
	sigma2 := make([]float64, total)
	for t := 0; t < total; t++ {
		j := m + t
		lns := e.step(params, s, j)
		sigma2[t] = math.Exp(lns)
		resids[t] = z[t] * math.Sqrt(sigma2[t])
		e.record(s, j, lns, z[t])
	}
	return resids[burn:], sigma2[burn:], nil
}

// Forecast supports the analytic method for one step only.
func (e *Egarch) Forecast(req ForecastRequest) (*Forecast, error) {
	if err := e.Validate(req.Params); err != nil {
		return nil, err
	}
	if err := checkRequest(req, e.MinHistory()); err != nil {
		return nil, err
	}
	n := len(req.Resids)
	sigma2 := make([]float64, n)
	hist, err := e.run(req.Params, req.Resids, req.Backcast, sigma2)
	if err != nil {
		return nil, err
	}
	m := e.MinHistory()
	h := req.Horizon
	path := func(r int, z, out []float64) error {
		s := &egState{absZ: make([]float64, m+h), z: make([]float64, m+h), lns: make([]float64, m+h)}
		copy(s.absZ, hist.absZ[r+1:r+1+m])
		copy(s.z, hist.z[r+1:r+1+m])
		copy(s.lns, hist.lns[r+1:r+1+m])
		for k := 0; k < h; k++ {
			j := m + k
			lns := e.step(req.Params, s, j)
			out[k] = math.Exp(lns)
			if z == nil {
				continue
			}
			e.record(s, j, lns, z[k])
		}
		return nil
	}
	return runForecast(req, false, standardize(req.Resids, sigma2), path)
}
