// Package mean composes a conditional mean, a volatility process and an
// innovation distribution into one model.
//
// Mean specifications are zero, constant, autoregressive with exogenous
// regressors (ARX), heterogeneous autoregressive (HARX) and least squares
// (LS). The parameter vector is laid out as mean, volatility and
// distribution blocks:
//
//	g, _ := volatility.NewGARCH(1, 0, 1, 2)
//	m, err := mean.NewARX(y, nil, []int{1},
//	    mean.WithVolatility(g),
//	    mean.WithDistribution(distribution.NewStudentsT()))
//	fit, err := m.Fit()
//
// Exogenous regressors are target aligned: row t of the regressor frame
// explains y[t]. Forecasts use the opposite convention. Row t of the
// future regressors supplies the value needed to forecast y[t+1], so an
// in-sample frame must be shifted back one period before it is passed to
// WithFutureX.
//
//	fc, err := fit.Forecast(mean.WithHorizon(10),
//	    mean.WithMethod(volatility.Simulation),
//	    mean.WithForecastSeed(7))
//
// Models are immutable. WithVolatility and WithDistribution on a Model
// return a new Model.
package mean
