// Package volatility implements conditional variance processes.
//
// A Process turns a residual sequence and its own parameters into a
// conditional variance sequence, simulates new residual paths and forecasts
// the variance from any origin in the sample.
//
// Supported processes:
//   - GARCH(p, o, q) with power κ, covering ARCH, GJR-GARCH, TARCH and AVGARCH
//   - EGARCH(p, o, q)
//   - HARCH with heterogeneous lag averages
//   - EWMA (RiskMetrics), fixed or estimated smoothing
//   - ConstantVariance
//
// Pre-sample values are seeded by a backcast, an exponentially weighted
// average of the first residuals. Forecasts are analytic, simulated from a
// parametric distribution, or bootstrapped from standardized residuals:
//
//	vol, _ := volatility.NewGARCH(1, 0, 1, 2)
//	f, err := vol.Forecast(volatility.ForecastRequest{
//	    Params:   params,
//	    Resids:   resids,
//	    Backcast: vol.Backcast(resids),
//	    Start:    len(resids) - 1,
//	    Horizon:  10,
//	    Method:   volatility.Analytic,
//	})
package volatility
