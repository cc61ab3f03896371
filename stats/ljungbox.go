package stats

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goarch/timeseries"
)

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int // Degrees of freedom
}

// LjungBox tests for autocorrelation up to lag h. fitdf is the number of
// estimated parameters whose degrees of freedom are removed.
func LjungBox(series *timeseries.Series, lags, fitdf int) *LjungBoxResult {
	n := series.Len()
	if n < 10 || lags < 1 {
		return nil
	}
	if lags >= n {
		lags = n - 1
	}

	rho := autocorr(series.Values, lags)
	if rho == nil {
		return nil
	}

	q := 0.0
	for k, r := range rho[1:] {
		q += r * r / float64(n-k-1)
	}
	q *= float64(n * (n + 2))

	dof := max(lags-fitdf, 1)
	return &LjungBoxResult{
		Statistic: q,
		PValue:    chiSquaredSF(q, dof),
		Lags:      lags,
		DOF:       dof,
	}
}

// ARCHLMResult represents the result of Engle's ARCH-LM test.
type ARCHLMResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	NObs      int
}

// ARCHLM regresses squared values on a constant and their own lags. Under
// the null of no ARCH effects n·R² is chi-squared with lags degrees of
// freedom.
func ARCHLM(series *timeseries.Series, lags int) *ARCHLMResult {
	n := series.Len()
	if lags < 1 || n-lags < lags+10 {
		return nil
	}

	e2 := make([]float64, n)
	for i, v := range series.Values {
		e2[i] = v * v
	}
	nObs := n - lags
	x := mat.NewDense(nObs, lags+1, nil)
	y := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + lags
		y[i] = e2[t]
		x.Set(i, 0, 1)
		for j := 1; j <= lags; j++ {
			x.Set(i, j, e2[t-j])
		}
	}

	fit, err := ols(x, y)
	if err != nil {
		return nil
	}
	fitted := make([]float64, nObs)
	for i := range fitted {
		fitted[i] = y[i] - fit.resid[i]
	}
	r2 := stat.RSquaredFrom(fitted, y, nil)
	lm := float64(nObs) * r2

	return &ARCHLMResult{
		Statistic: lm,
		PValue:    chiSquaredSF(lm, lags),
		Lags:      lags,
		NObs:      nObs,
	}
}

// chiSquaredSF is the upper tail probability of a chi-squared variate.
func chiSquaredSF(x float64, k int) float64 {
	if x <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(k)}.Survival(x)
}
