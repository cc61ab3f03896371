// Package autoarch selects the lag order of the mean and the orders of a
// GARCH process by information criterion.
//
// Every candidate in the grid is fitted on the same sample. The first
// MaxLags observations are held back from all of them, which keeps the
// log-likelihoods comparable.
//
//	cfg := autoarch.DefaultConfig()
//	cfg.Criterion = "bic"
//	res, err := autoarch.Select(ctx, returns, nil, cfg)
//	if err != nil {
//		return err
//	}
//	fc, err := res.Fit.Forecast(mean.WithHorizon(10))
package autoarch
