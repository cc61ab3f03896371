package volatility

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// garchCore is the power GARCH(p, o, q) recursion on σ^κ:
//
//	σ^κ_t = ω + Σ α_i |ε_{t-i}|^κ + Σ γ_j |ε_{t-j}|^κ 1[ε_{t-j} < 0] + Σ β_k σ^κ_{t-k}
//
// Parameters are ordered ω, α_1..α_p, γ_1..γ_o, β_1..β_q.
type garchCore struct {
	p, o, q int
	power   float64
}

func (c garchCore) numParams() int {
	return 1 + c.p + c.o + c.q
}

func (c garchCore) maxLag() int {
	return max(c.p, c.o, c.q)
}

// state holds the recursion inputs with maxLag pre-sample slots in front.
type state struct {
	absE []float64 // |ε|^κ
	negE []float64 // |ε|^κ 1[ε < 0]
	fsig []float64 // σ^κ
}

func (c garchCore) newState(n int, initial float64) *state {
	m := c.maxLag()
	s := &state{
		absE: make([]float64, m+n),
		negE: make([]float64, m+n),
		fsig: make([]float64, m+n),
	}
	for i := 0; i < m; i++ {
		s.absE[i] = initial
		s.negE[i] = 0.5 * initial
		s.fsig[i] = initial
	}
	return s
}

func (c garchCore) step(cp []float64, s *state, j int) float64 {
	v := cp[0]
	for i := 1; i <= c.p; i++ {
		v += cp[i] * s.absE[j-i]
	}
	for i := 1; i <= c.o; i++ {
		v += cp[c.p+i] * s.negE[j-i]
	}
	for i := 1; i <= c.q; i++ {
		v += cp[c.p+c.o+i] * s.fsig[j-i]
	}
	return v
}

func (c garchCore) checkBase(v float64, t int) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return archerr.Numerical("variance base %g at index %d is not positive and finite", v, t)
	}
	return nil
}

func (c garchCore) record(s *state, j int, e float64) {
	a := math.Pow(math.Abs(e), c.power)
	if c.power == 2 {
		a = e * e
	}
	s.absE[j] = a
	if e < 0 {
		s.negE[j] = a
	} else {
		s.negE[j] = 0
	}
}

// run computes the recursion over resids, returning the filled state.
func (c garchCore) run(cp, resids []float64, backcast, upper float64, sigma2 []float64) (*state, error) {
	m := c.maxLag()
	s := c.newState(len(resids), backcast)
	for t, e := range resids {
		j := m + t
		v := c.step(cp, s, j)
		if err := c.checkBase(v, t); err != nil {
			return nil, err
		}
		v2 := math.Pow(v, 2/c.power)
		if d := dampen(v2, upper); d != v2 {
			v2 = d
			v = math.Pow(d, c.power/2)
		}
		sigma2[t] = v2
		s.fsig[j] = v
		c.record(s, j, e)
	}
	return s, nil
}

func (c garchCore) simulate(cp []float64, n, burn int, shocks ShockSource, initial float64) ([]float64, []float64, error) {
	if n < 1 || burn < 0 {
		return nil, nil, archerr.Configuration("cannot simulate %d observations with burn %d", n, burn)
	}
	total := n + burn
	z, err := shocks.Draw(total)
	if err != nil {
		return nil, nil, err
	}
	m := c.maxLag()
	s := c.newState(total, initial)
	resids := make([]float64, total)
	sigma2 := make([]float64, total)
	for t := 0; t < total; t++ {
		j := m + t
		v := c.step(cp, s, j)
		if err := c.checkBase(v, t); err != nil {
			return nil, nil, err
		}
		s.fsig[j] = v
		sigma2[t] = math.Pow(v, 2/c.power)
		resids[t] = z[t] * math.Sqrt(sigma2[t])
		c.record(s, j, resids[t])
	}
	return resids[burn:], sigma2[burn:], nil
}

// multiStep reports whether analytic forecasts exist beyond one step.
func (c garchCore) multiStep() bool {
	return c.power == 2 && c.o == 0
}

func (c garchCore) forecast(cp []float64, req ForecastRequest) (*Forecast, error) {
	n := len(req.Resids)
	sigma2 := make([]float64, n)
	hist, err := c.run(cp, req.Resids, req.Backcast, varianceCap(req.Resids), sigma2)
	if err != nil {
		return nil, err
	}
	m := c.maxLag()
	h := req.Horizon
	path := func(r int, z, out []float64) error {
		s := &state{
			absE: make([]float64, m+h),
			negE: make([]float64, m+h),
			fsig: make([]float64, m+h),
		}
		copy(s.absE, hist.absE[r+1:r+1+m])
		copy(s.negE, hist.negE[r+1:r+1+m])
		copy(s.fsig, hist.fsig[r+1:r+1+m])
		for k := 0; k < h; k++ {
			j := m + k
			v := c.step(cp, s, j)
			if err := c.checkBase(v, r+1+k); err != nil {
				return err
			}
			s.fsig[j] = v
			out[k] = math.Pow(v, 2/c.power)
			if z == nil {
				s.absE[j] = v
				s.negE[j] = 0.5 * v
				continue
			}
			c.record(s, j, z[k]*math.Sqrt(out[k]))
		}
		return nil
	}
	return runForecast(req, c.multiStep(), standardize(req.Resids, sigma2), path)
}

// startingValues grid-searches persistence combinations with ω set by
// variance targeting and returns the best by Gaussian likelihood.
func (c garchCore) startingValues(resids []float64) []float64 {
	target := meanOrOne(powAbs(resids, c.power))
	grid := []float64{0.01, 0.05, 0.1, 0.2}
	betas := []float64{0.5, 0.7, 0.9, 0.98}
	alphas, gammas, bs := []float64{0}, []float64{0}, []float64{0}
	if c.p > 0 {
		alphas = grid
	}
	if c.o > 0 {
		gammas = grid
	}
	if c.q > 0 {
		bs = betas
	}

	upper := varianceCap(resids)
	sigma2 := make([]float64, len(resids))
	var best []float64
	bestLL := math.Inf(-1)
	for _, a := range alphas {
		for _, g := range gammas {
			for _, b := range bs {
				persistence := a + 0.5*g + b
				if persistence >= 1 {
					continue
				}
				cp := make([]float64, c.numParams())
				cp[0] = target * (1 - persistence)
				for i := 1; i <= c.p; i++ {
					cp[i] = a / float64(c.p)
				}
				for i := 1; i <= c.o; i++ {
					cp[c.p+i] = g / float64(c.o)
				}
				for i := 1; i <= c.q; i++ {
					cp[c.p+c.o+i] = b / float64(c.q)
				}
				if best == nil {
					best = cp
				}
				if _, err := c.run(cp, resids, ewmaBackcast(powAbs(resids, c.power)), upper, sigma2); err != nil {
					continue
				}
				if ll := gaussianLogLik(resids, sigma2); ll > bestLL {
					bestLL = ll
					best = cp
				}
			}
		}
	}
	return best
}

// Garch is the power GARCH(p, o, q) process.
type Garch struct {
	core garchCore
}

// NewGARCH returns a GARCH(p, o, q) process on |ε|^power. power 2 gives the
// usual variance recursion and power 1 the absolute value recursion.
func NewGARCH(p, o, q int, power float64) (*Garch, error) {
	if p < 0 || o < 0 || q < 0 {
		return nil, archerr.Configuration("lag orders must be non-negative, got p=%d o=%d q=%d", p, o, q)
	}
	if p+o == 0 && q > 0 {
		return nil, archerr.Configuration("q=%d needs at least one of p or o to be positive", q)
	}
	if !(power > 0) || math.IsInf(power, 0) {
		return nil, archerr.Configuration("power must be positive, got %g", power)
	}
	return &Garch{core: garchCore{p: p, o: o, q: q, power: power}}, nil
}

// NewARCH returns ARCH(p).
func NewARCH(p int) (*Garch, error) {
	return NewGARCH(p, 0, 0, 2)
}

// NewGJR returns the GJR-GARCH(p, o, q) leverage model.
func NewGJR(p, o, q int) (*Garch, error) {
	return NewGARCH(p, o, q, 2)
}

// NewTARCH returns the threshold model on absolute residuals (TARCH/ZARCH).
func NewTARCH(p, o, q int) (*Garch, error) {
	return NewGARCH(p, o, q, 1)
}

// NewAVGARCH returns the symmetric absolute value GARCH(p, q).
func NewAVGARCH(p, q int) (*Garch, error) {
	return NewGARCH(p, 0, q, 1)
}

// Order returns p, o and q.
func (g *Garch) Order() (p, o, q int) {
	return g.core.p, g.core.o, g.core.q
}

// Power returns κ.
func (g *Garch) Power() float64 {
	return g.core.power
}

// Name returns the process name.
func (g *Garch) Name() string {
	c := g.core
	switch c.power {
	case 2:
		switch {
		case c.o > 0:
			return "GJR-GARCH"
		case c.q == 0:
			return "ARCH"
		}
		return "GARCH"
	case 1:
		switch {
		case c.o > 0:
			return "TARCH/ZARCH"
		case c.q == 0:
			return "AVARCH"
		}
		return "AVGARCH"
	}
	if c.o > 0 {
		return "Asym. Power GARCH"
	}
	return "Power GARCH"
}

// String returns the name with the model orders.
func (g *Garch) String() string {
	c := g.core
	return fmt.Sprintf("%s(p: %d, o: %d, q: %d, power: %g)", g.Name(), c.p, c.o, c.q, c.power)
}

// NumParams returns the number of parameters.
func (g *Garch) NumParams() int {
	return g.core.numParams()
}

// ParamNames returns the parameter names in layout order.
func (g *Garch) ParamNames() []string {
	c := g.core
	names := []string{"omega"}
	for i := 1; i <= c.p; i++ {
		names = append(names, fmt.Sprintf("alpha[%d]", i))
	}
	for i := 1; i <= c.o; i++ {
		names = append(names, fmt.Sprintf("gamma[%d]", i))
	}
	for i := 1; i <= c.q; i++ {
		names = append(names, fmt.Sprintf("beta[%d]", i))
	}
	return names
}

// Bounds returns the parameter box. ω is scaled by the residual variance.
func (g *Garch) Bounds(resids []float64) []estimate.Bound {
	c := g.core
	v := meanOrOne(powAbs(resids, c.power))
	bounds := []estimate.Bound{{Lower: 1e-8 * v, Upper: 10 * v}}
	for i := 0; i < c.p; i++ {
		bounds = append(bounds, estimate.Bound{Lower: 0, Upper: 1})
	}
	for i := 0; i < c.o; i++ {
		if i < c.p {
			bounds = append(bounds, estimate.Bound{Lower: -1, Upper: 2})
		} else {
			bounds = append(bounds, estimate.Bound{Lower: 0, Upper: 2})
		}
	}
	for i := 0; i < c.q; i++ {
		bounds = append(bounds, estimate.Bound{Lower: 0, Upper: 1})
	}
	return bounds
}

// Constraints returns α_i + γ_i >= 0 and 1 - Σα - ½Σγ - Σβ >= 0.
func (g *Garch) Constraints() estimate.Constraints {
	c := g.core
	k := c.numParams()
	var cons estimate.Constraints
	for i := 0; i < min(c.p, c.o); i++ {
		row := make([]float64, k)
		row[1+i] = 1
		row[1+c.p+i] = 1
		cons.Add(row, 0)
	}
	row := make([]float64, k)
	for i := 1; i < k; i++ {
		row[i] = -1
		if i > c.p && i <= c.p+c.o {
			row[i] = -0.5
		}
	}
	cons.Add(row, -1)
	return cons
}

// StartingValues grid-searches the persistence with ω set by variance targeting.
func (g *Garch) StartingValues(resids []float64) []float64 {
	return g.core.startingValues(resids)
}

// Backcast is the pre-sample value of the recursion.
func (g *Garch) Backcast(resids []float64) float64 {
	return ewmaBackcast(powAbs(resids, g.core.power))
}

// Validate returns InvalidParameter for parameters outside the bounds or constraints.
func (g *Garch) Validate(params []float64) error {
	c := g.core
	names := g.ParamNames()
	if len(params) != c.numParams() {
		return archerr.InvalidParameter("%s expects %d parameters, got %d", g.Name(), c.numParams(), len(params))
	}
	if err := checkFinite(names, params); err != nil {
		return err
	}
	if params[0] <= 0 {
		return archerr.InvalidParameter("omega must be positive, got %g", params[0])
	}
	for i := 1; i <= c.p; i++ {
		if params[i] < 0 {
			return archerr.InvalidParameter("%s must be non-negative, got %g", names[i], params[i])
		}
	}
	for i := 1; i <= c.o; i++ {
		v := params[c.p+i]
		if i <= c.p {
			v += params[i]
		}
		if v < 0 {
			return archerr.InvalidParameter("%s plus its alpha must be non-negative", names[c.p+i])
		}
	}
	for i := 1; i <= c.q; i++ {
		if v := params[c.p+c.o+i]; v < 0 {
			return archerr.InvalidParameter("%s must be non-negative, got %g", names[c.p+c.o+i], v)
		}
	}
	return nil
}

// ComputeVariance fills sigma2 with the conditional variance of resids.
func (g *Garch) ComputeVariance(params, resids []float64, backcast float64, sigma2 []float64) error {
	if err := checkLengths(params, g.NumParams(), resids, sigma2); err != nil {
		return err
	}
	_, err := g.core.run(params, resids, backcast, varianceCap(resids), sigma2)
	return err
}

// persistence is Σα + ½Σγ + Σβ.
func (g *Garch) persistence(params []float64) float64 {
	c := g.core
	total := 0.0
	for i := 1; i < len(params); i++ {
		if i > c.p && i <= c.p+c.o {
			total += 0.5 * params[i]
		} else {
			total += params[i]
		}
	}
	return total
}

// Simulate starts from the unconditional level of σ^κ when the process is
// stationary, otherwise from ω.
func (g *Garch) Simulate(params []float64, n, burn int, shocks ShockSource) ([]float64, []float64, error) {
	if err := g.Validate(params); err != nil {
		return nil, nil, err
	}
	initial := params[0]
	if pers := g.persistence(params); pers < 1 {
		initial = params[0] / (1 - pers)
	}
	return g.core.simulate(params, n, burn, shocks, initial)
}

// Forecast produces variance forecasts from every origin of req.
func (g *Garch) Forecast(req ForecastRequest) (*Forecast, error) {
	if err := g.Validate(req.Params); err != nil {
		return nil, err
	}
	if err := checkRequest(req, g.MinHistory()); err != nil {
		return nil, err
	}
	return g.core.forecast(req.Params, req)
}

// MinHistory returns the longest lag the recursion reads.
func (g *Garch) MinHistory() int {
	return g.core.maxLag()
}

// UnconditionalVariance is ω / (1 - Σα - ½Σγ - Σβ) for power 2 and +Inf
// for non-stationary parameters.
func (g *Garch) UnconditionalVariance(params []float64) (float64, error) {
	if err := g.Validate(params); err != nil {
		return 0, err
	}
	if g.core.power != 2 {
		return 0, archerr.UnsupportedForecast("no closed-form unconditional variance for power %g", g.core.power)
	}
	pers := g.persistence(params)
	if pers >= 1 {
		return math.Inf(1), nil
	}
	return params[0] / (1 - pers), nil
}
