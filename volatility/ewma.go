package volatility

import (
	"fmt"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// EWMA is the RiskMetrics exponentially weighted variance
//
//	σ²_t = λ σ²_{t-1} + (1 - λ) ε²_{t-1}
//
// With a fixed λ the process has no parameters; otherwise λ is estimated.
type EWMA struct {
	lambda   float64
	estimate bool
	core     garchCore
}

// NewEWMA returns an EWMA with fixed smoothing lambda in (0, 1).
func NewEWMA(lambda float64) (*EWMA, error) {
	if !(lambda > 0 && lambda < 1) {
		return nil, archerr.Configuration("lambda must be in (0, 1), got %g", lambda)
	}
	return &EWMA{lambda: lambda, core: garchCore{p: 1, q: 1, power: 2}}, nil
}

// NewRiskMetrics returns the EWMA with λ = 0.94.
func NewRiskMetrics() *EWMA {
	e, _ := NewEWMA(0.94)
	return e
}

// NewEstimatedEWMA returns an EWMA whose λ is a free parameter.
func NewEstimatedEWMA() *EWMA {
	return &EWMA{lambda: 0.94, estimate: true, core: garchCore{p: 1, q: 1, power: 2}}
}

// Name returns the process name.
func (e *EWMA) Name() string { return "EWMA/RiskMetrics" }

// String includes lambda, or notes that it is estimated.
func (e *EWMA) String() string {
	if e.estimate {
		return "EWMA/RiskMetrics(lambda: estimated)"
	}
	return fmt.Sprintf("EWMA/RiskMetrics(lambda: %g)", e.lambda)
}

// NumParams returns the number of parameters.
func (e *EWMA) NumParams() int {
	if e.estimate {
		return 1
	}
	return 0
}

// MinHistory is one.
func (e *EWMA) MinHistory() int { return 1 }

// ParamNames returns the parameter names in layout order.
func (e *EWMA) ParamNames() []string {
	if e.estimate {
		return []string{"lambda"}
	}
	return []string{}
}

// Bounds keeps lambda in [0, 1] when it is estimated.
func (e *EWMA) Bounds(_ []float64) []estimate.Bound {
	if e.estimate {
		return []estimate.Bound{{Lower: 0, Upper: 1}}
	}
	return []estimate.Bound{}
}

// Constraints is empty; lambda is bounded instead.
func (e *EWMA) Constraints() estimate.Constraints {
	return estimate.Constraints{}
}

// StartingValues is lambda = 0.94 when lambda is estimated.
func (e *EWMA) StartingValues(_ []float64) []float64 {
	if e.estimate {
		return []float64{0.94}
	}
	return []float64{}
}

// Backcast is the EWMA of the first squared residuals.
func (e *EWMA) Backcast(resids []float64) float64 {
	return ewmaBackcast(powAbs(resids, 2))
}

// Validate returns InvalidParameter for parameters outside the bounds or constraints.
func (e *EWMA) Validate(params []float64) error {
	if len(params) != e.NumParams() {
		return archerr.InvalidParameter("EWMA expects %d parameters, got %d", e.NumParams(), len(params))
	}
	if e.estimate && !(params[0] >= 0 && params[0] <= 1) {
		return archerr.InvalidParameter("lambda must be in [0, 1], got %g", params[0])
	}
	return nil
}

func (e *EWMA) expand(params []float64) []float64 {
	lambda := e.lambda
	if e.estimate {
		lambda = params[0]
	}
	return []float64{0, 1 - lambda, lambda}
}

// ComputeVariance fills sigma2 with the conditional variance of resids.
func (e *EWMA) ComputeVariance(params, resids []float64, backcast float64, sigma2 []float64) error {
	if err := checkLengths(params, e.NumParams(), resids, sigma2); err != nil {
		return err
	}
	_, err := e.core.run(e.expand(params), resids, backcast, varianceCap(resids), sigma2)
	return err
}

// Simulate starts from a unit variance since the process has no
// unconditional level.
func (e *EWMA) Simulate(params []float64, n, burn int, shocks ShockSource) ([]float64, []float64, error) {
	if err := e.Validate(params); err != nil {
		return nil, nil, err
	}
	return e.core.simulate(e.expand(params), n, burn, shocks, 1)
}

// Forecast produces variance forecasts from every origin of req.
func (e *EWMA) Forecast(req ForecastRequest) (*Forecast, error) {
	if err := e.Validate(req.Params); err != nil {
		return nil, err
	}
	if err := checkRequest(req, e.MinHistory()); err != nil {
		return nil, err
	}
	return e.core.forecast(e.expand(req.Params), req)
}
