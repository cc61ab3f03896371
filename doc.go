// Package goarch provides ARCH and GARCH conditional volatility models.
//
// GoARCH estimates a conditional mean, a conditional variance process and
// an innovation distribution jointly by maximum likelihood, and forecasts
// the mean and variance over several horizons by analytic recursion,
// Monte-Carlo simulation or bootstrap of standardized residuals.
//
// # Features
//
//   - Mean models: zero, constant, ARX, HARX and least squares
//   - Volatility: GARCH(p,o,q) with any power (ARCH, GJR, TARCH, AVGARCH),
//     EGARCH, HARCH, EWMA/RiskMetrics and constant variance
//   - Distributions: normal, Student's t, Hansen's skewed t and GED
//   - Classic and robust (Bollerslev-Wooldridge) standard errors
//   - Rolling refits and order selection by information criterion
//   - Unit-root tests (ADF, Phillips-Perron, KPSS), Ljung-Box and ARCH-LM
//   - IID, stationary and circular-block bootstrap
//
// # Quick Start
//
// Fit a GJR-GARCH(1,1,1) with Student's t innovations:
//
//	returns, _ := prices.Returns(timeseries.LogReturns)
//	vol, _ := volatility.NewGJR(1, 1, 1)
//	model, _ := mean.NewConstantMean(returns,
//		mean.WithVolatility(vol),
//		mean.WithDistribution(distribution.NewStudentsT()))
//	fit, _ := model.Fit()
//	fc, _ := fit.Forecast(mean.WithHorizon(10), mean.WithMethod(volatility.Simulation))
//
// Search the orders automatically:
//
//	res, _ := autoarch.Select(ctx, returns, nil, autoarch.DefaultConfig())
//	fc, _ := res.Fit.Forecast(mean.WithHorizon(10))
//
// # Packages
//
//   - mean: mean models, estimation, simulation and forecasting
//   - volatility: conditional variance processes
//   - distribution: standardized innovation distributions
//   - estimate: parameter layout, constrained optimizer and covariance
//   - autoarch: automatic order selection
//   - bootstrap: resampling schemes
//   - stats: statistical tests and autocorrelation
//   - timeseries: series, regressor frames and CSV input
//   - archerr: error codes shared by all packages
//
// # References
//
//   - Bollerslev, T. (1986). Generalized Autoregressive Conditional Heteroskedasticity
//   - Glosten, L. R., Jagannathan, R., & Runkle, D. E. (1993). On the Relation between the Expected Value and the Volatility of the Nominal Excess Return on Stocks
//   - Hansen, B. E. (1994). Autoregressive Conditional Density Estimation
//   - Nelson, D. B. (1991). Conditional Heteroskedasticity in Asset Returns: A New Approach
package goarch
