package volatility

import (
	"fmt"
	"math"
	"slices"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// Harch is the heterogeneous ARCH process
//
//	σ²_t = ω + Σ_i α_i (1/l_i) Σ_{j=1..l_i} ε²_{t-j}
//
// evaluated as an ARCH(max l) with aggregated coefficients.
type Harch struct {
	lags []int
	core garchCore
}

// NewHARCH returns HARCH with the given lag lengths, e.g. 1, 5, 22.
func NewHARCH(lags ...int) (*Harch, error) {
	if len(lags) == 0 {
		return nil, archerr.Configuration("HARCH needs at least one lag")
	}
	sorted := slices.Clone(lags)
	slices.Sort(sorted)
	for i, l := range sorted {
		if l < 1 {
			return nil, archerr.Configuration("HARCH lags must be positive, got %d", l)
		}
		if i > 0 && l == sorted[i-1] {
			return nil, archerr.Configuration("HARCH lag %d is repeated", l)
		}
	}
	return &Harch{lags: sorted, core: garchCore{p: sorted[len(sorted)-1], power: 2}}, nil
}

// Lags returns the sorted lag lengths.
func (h *Harch) Lags() []int {
	return slices.Clone(h.lags)
}

// Name returns the process name.
func (h *Harch) Name() string { return "HARCH" }

// String returns the name with the model orders.
func (h *Harch) String() string {
	return fmt.Sprintf("HARCH(lags: %v)", h.lags)
}

// NumParams returns the number of parameters.
func (h *Harch) NumParams() int { return 1 + len(h.lags) }

// MinHistory returns the longest lag the recursion reads.
func (h *Harch) MinHistory() int { return h.core.p }

// ParamNames returns the parameter names in layout order.
func (h *Harch) ParamNames() []string {
	names := []string{"omega"}
	for _, l := range h.lags {
		names = append(names, fmt.Sprintf("alpha[%d]", l))
	}
	return names
}

// Bounds returns the parameter box. ω is scaled by the residual variance.
func (h *Harch) Bounds(resids []float64) []estimate.Bound {
	v := meanOrOne(powAbs(resids, 2))
	bounds := []estimate.Bound{{Lower: 1e-8 * v, Upper: 10 * v}}
	for range h.lags {
		bounds = append(bounds, estimate.Bound{Lower: 0, Upper: 1})
	}
	return bounds
}

// Constraints returns 1 - Σα >= 0.
func (h *Harch) Constraints() estimate.Constraints {
	var cons estimate.Constraints
	row := make([]float64, h.NumParams())
	for i := 1; i < len(row); i++ {
		row[i] = -1
	}
	cons.Add(row, -1)
	return cons
}

// expand maps HARCH parameters to ARCH(max l) coefficients.
func (h *Harch) expand(params []float64) []float64 {
	cp := make([]float64, h.core.numParams())
	cp[0] = params[0]
	for i, l := range h.lags {
		w := params[1+i] / float64(l)
		for j := 1; j <= l; j++ {
			cp[j] += w
		}
	}
	return cp
}

// StartingValues spreads a fixed persistence evenly over the lags.
func (h *Harch) StartingValues(resids []float64) []float64 {
	v := meanOrOne(powAbs(resids, 2))
	sv := []float64{0.1 * v}
	for range h.lags {
		sv = append(sv, 0.9/float64(len(h.lags)))
	}
	return sv
}

// Backcast is the pre-sample value of the recursion.
func (h *Harch) Backcast(resids []float64) float64 {
	return ewmaBackcast(powAbs(resids, 2))
}

// Validate returns InvalidParameter for parameters outside the bounds or constraints.
func (h *Harch) Validate(params []float64) error {
	if len(params) != h.NumParams() {
		return archerr.InvalidParameter("HARCH expects %d parameters, got %d", h.NumParams(), len(params))
	}
	names := h.ParamNames()
	if err := checkFinite(names, params); err != nil {
		return err
	}
	if params[0] <= 0 {
		return archerr.InvalidParameter("omega must be positive, got %g", params[0])
	}
	for i := 1; i < len(params); i++ {
		if params[i] < 0 {
			return archerr.InvalidParameter("%s must be non-negative, got %g", names[i], params[i])
		}
	}
	return nil
}

// ComputeVariance fills sigma2 with the conditional variance of resids.
func (h *Harch) ComputeVariance(params, resids []float64, backcast float64, sigma2 []float64) error {
	if err := checkLengths(params, h.NumParams(), resids, sigma2); err != nil {
		return err
	}
	_, err := h.core.run(h.expand(params), resids, backcast, varianceCap(resids), sigma2)
	return err
}

// Simulate returns n residuals and variances after discarding burn draws.
func (h *Harch) Simulate(params []float64, n, burn int, shocks ShockSource) ([]float64, []float64, error) {
	if err := h.Validate(params); err != nil {
		return nil, nil, err
	}
	initial := params[0]
	if u, err := h.UnconditionalVariance(params); err == nil && !math.IsInf(u, 1) {
		initial = u
	}
	return h.core.simulate(h.expand(params), n, burn, shocks, initial)
}

// Forecast produces variance forecasts from every origin of req.
func (h *Harch) Forecast(req ForecastRequest) (*Forecast, error) {
	if err := h.Validate(req.Params); err != nil {
		return nil, err
	}
	if err := checkRequest(req, h.MinHistory()); err != nil {
		return nil, err
	}
	return h.core.forecast(h.expand(req.Params), req)
}

// UnconditionalVariance is ω / (1 - Σα), +Inf when Σα >= 1.
func (h *Harch) UnconditionalVariance(params []float64) (float64, error) {
	if err := h.Validate(params); err != nil {
		return 0, err
	}
	total := 0.0
	for _, a := range params[1:] {
		total += a
	}
	if total >= 1 {
		return math.Inf(1), nil
	}
	return params[0] / (1 - total), nil
}
