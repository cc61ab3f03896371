package volatility

import (
	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// ConstantVariance has σ²_t = σ² for every t.
type ConstantVariance struct {
	core garchCore
}

// NewConstantVariance returns the constant variance process.
func NewConstantVariance() *ConstantVariance {
	return &ConstantVariance{core: garchCore{power: 2}}
}

// Name returns the process name.
func (c *ConstantVariance) Name() string { return "Constant Variance" }

// String is the process name.
func (c *ConstantVariance) String() string { return c.Name() }

// NumParams returns the number of parameters.
func (c *ConstantVariance) NumParams() int { return 1 }

// MinHistory is zero.
func (c *ConstantVariance) MinHistory() int { return 0 }

// ParamNames returns the parameter names in layout order.
func (c *ConstantVariance) ParamNames() []string { return []string{"sigma2"} }

// Bounds scales the sigma2 range by the mean squared residual.
func (c *ConstantVariance) Bounds(resids []float64) []estimate.Bound {
	v := meanOrOne(powAbs(resids, 2))
	return []estimate.Bound{{Lower: 1e-5 * v, Upper: 10 * v}}
}

// Constraints is empty.
func (c *ConstantVariance) Constraints() estimate.Constraints {
	return estimate.Constraints{}
}

// StartingValues is the sample variance.
func (c *ConstantVariance) StartingValues(resids []float64) []float64 {
	return []float64{meanOrOne(powAbs(resids, 2))}
}

// Backcast is the EWMA of the first squared residuals.
func (c *ConstantVariance) Backcast(resids []float64) float64 {
	return ewmaBackcast(powAbs(resids, 2))
}

// Validate returns InvalidParameter for parameters outside the bounds or constraints.
func (c *ConstantVariance) Validate(params []float64) error {
	if len(params) != 1 {
		return archerr.InvalidParameter("constant variance expects 1 parameter, got %d", len(params))
	}
	if !(params[0] > 0) {
		return archerr.InvalidParameter("sigma2 must be positive, got %g", params[0])
	}
	return checkFinite(c.ParamNames(), params)
}

// ComputeVariance fills sigma2 with the conditional variance of resids.
func (c *ConstantVariance) ComputeVariance(params, resids []float64, backcast float64, sigma2 []float64) error {
	if err := checkLengths(params, 1, resids, sigma2); err != nil {
		return err
	}
	_, err := c.core.run(params, resids, backcast, varianceCap(resids), sigma2)
	return err
}

// Simulate returns n residuals and variances after discarding burn draws.
func (c *ConstantVariance) Simulate(params []float64, n, burn int, shocks ShockSource) ([]float64, []float64, error) {
	if err := c.Validate(params); err != nil {
		return nil, nil, err
	}
	return c.core.simulate(params, n, burn, shocks, params[0])
}

// Forecast produces variance forecasts from every origin of req.
func (c *ConstantVariance) Forecast(req ForecastRequest) (*Forecast, error) {
	if err := c.Validate(req.Params); err != nil {
		return nil, err
	}
	if err := checkRequest(req, c.MinHistory()); err != nil {
		return nil, err
	}
	return c.core.forecast(req.Params, req)
}

// UnconditionalVariance is sigma2 itself.
func (c *ConstantVariance) UnconditionalVariance(params []float64) (float64, error) {
	if err := c.Validate(params); err != nil {
		return 0, err
	}
	return params[0], nil
}
