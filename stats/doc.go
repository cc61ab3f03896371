// Package stats provides unit-root tests and residual diagnostics for
// volatility models.
//
// # Unit-Root Tests
//
// Every test takes the deterministic terms of its regression as a Trend:
//
//	// Augmented Dickey-Fuller, H0: unit root
//	adf, err := stats.ADF(series, stats.Constant, -1) // -1 selects lags
//	fmt.Printf("ADF: stat=%.4f, p=%.4f, 5%%=%.3f\n",
//	    adf.Statistic, adf.PValue, adf.CriticalValues["5%"])
//
//	// KPSS, H0: stationary
//	kpss, err := stats.KPSS(series, stats.ConstantTrend, -1)
//
//	// Phillips-Perron Z-tau
//	pp, err := stats.PhillipsPerron(series, stats.Constant, -1)
//
// # Residual Diagnostics
//
// Test standardized residuals for remaining structure:
//
//	// Serial correlation
//	lb := stats.LjungBox(std, 10, 0)
//
//	// Remaining ARCH effects
//	lm := stats.ARCHLM(std, 5)
//	if lm.PValue < 0.05 {
//	    // the volatility model missed some clustering
//	}
package stats
