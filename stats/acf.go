package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goarch/timeseries"
)

// ACF returns the sample autocorrelations of the series at lags 0 through
// maxLag, with maxLag capped at Len()-1. A constant series has none and
// yields nil.
func ACF(series *timeseries.Series, maxLag int) []float64 {
	return autocorr(series.Values, maxLag)
}

// autocorr uses the biased autocovariance (divisor n at every lag), which
// keeps the sequence positive semi-definite.
func autocorr(x []float64, maxLag int) []float64 {
	maxLag = min(maxLag, len(x)-1)
	if maxLag < 0 {
		return nil
	}
	dev := make([]float64, len(x))
	copy(dev, x)
	floats.AddConst(-stat.Mean(x, nil), dev)

	c0 := floats.Dot(dev, dev)
	if c0 == 0 {
		return nil
	}
	rho := make([]float64, maxLag+1)
	for k := range rho {
		rho[k] = floats.Dot(dev[k:], dev[:len(dev)-k]) / c0
	}
	return rho
}
