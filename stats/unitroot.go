package stats

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/timeseries"
)

// Trend selects the deterministic terms of a unit-root regression.
type Trend int

const (
	None Trend = iota
	Constant
	ConstantTrend
	ConstantTrendSquared
)

// String returns the trend code.
func (t Trend) String() string {
	switch t {
	case None:
		return "n"
	case ConstantTrend:
		return "ct"
	case ConstantTrendSquared:
		return "ctt"
	}
	return "c"
}

// ParseTrend accepts n, c, ct and ctt.
func ParseTrend(s string) (Trend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "nc", "none":
		return None, nil
	case "c", "":
		return Constant, nil
	case "ct":
		return ConstantTrend, nil
	case "ctt":
		return ConstantTrendSquared, nil
	}
	return Constant, archerr.Configuration("unknown trend %q", s)
}

// deterministic returns the trend columns for observation t.
func (t Trend) deterministic(i int) []float64 {
	x := float64(i + 1)
	switch t {
	case Constant:
		return []float64{1}
	case ConstantTrend:
		return []float64{1, x}
	case ConstantTrendSquared:
		return []float64{1, x, x * x}
	}
	return nil
}

// TestResult is the outcome of a unit-root or stationarity test.
type TestResult struct {
	Name           string
	Statistic      float64
	PValue         float64
	Lags           int
	NObs           int
	Trend          Trend
	CriticalValues map[string]float64 // keyed "1%", "5%", "10%"
	// Stationary reports whether the test points to stationarity at 5%.
	Stationary bool
}

// dfCoefficients are MacKinnon (2010) response surface coefficients for the
// Dickey-Fuller tau statistic at 1%, 5% and 10%.
var dfCoefficients = map[Trend][3][4]float64{
	None: {
		{-2.56574, -2.2358, -3.627, 0},
		{-1.94100, -0.2686, -3.365, 31.223},
		{-1.61682, 0.2656, -2.714, 25.364},
	},
	Constant: {
		{-3.43035, -6.5393, -16.786, -79.433},
		{-2.86154, -2.8903, -4.234, -40.040},
		{-2.56677, -1.5384, -2.809, 0},
	},
	ConstantTrend: {
		{-3.95877, -9.0531, -28.428, -134.155},
		{-3.41049, -4.3904, -9.036, -45.374},
		{-3.12705, -2.5856, -3.925, -22.380},
	},
	ConstantTrendSquared: {
		{-4.37113, -11.5882, -35.819, -334.047},
		{-3.83239, -5.9057, -12.490, -118.284},
		{-3.55326, -4.1563, -5.892, -46.384},
	},
}

var levels = [3]string{"1%", "5%", "10%"}

func dfCriticalValues(trend Trend, nobs int) map[string]float64 {
	n := float64(nobs)
	cv := make(map[string]float64, 3)
	for i, b := range dfCoefficients[trend] {
		cv[levels[i]] = b[0] + b[1]/n + b[2]/(n*n) + b[3]/(n*n*n)
	}
	return cv
}

// tailPValue interpolates a p-value from critical values on the normal
// quantile scale. lower selects a left-tailed test.
func tailPValue(stat float64, cv map[string]float64, lower bool) float64 {
	probs := map[string]float64{"1%": 0.01, "2.5%": 0.025, "5%": 0.05, "10%": 0.10}
	type point struct{ x, z float64 }
	var pts []point
	for k, v := range cv {
		pts = append(pts, point{v, distuv.UnitNormal.Quantile(probs[k])})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].z < pts[j].z })
	if !lower {
		for i := range pts {
			pts[i].x = -pts[i].x
		}
		stat = -stat
	}

	// pts now has increasing z and increasing x.
	var z float64
	switch {
	case stat <= pts[0].x:
		a, b := pts[0], pts[1]
		z = a.z + (stat-a.x)*(b.z-a.z)/(b.x-a.x)
	case stat >= pts[len(pts)-1].x:
		a, b := pts[len(pts)-2], pts[len(pts)-1]
		z = b.z + (stat-b.x)*(b.z-a.z)/(b.x-a.x)
	default:
		for i := 1; i < len(pts); i++ {
			if stat <= pts[i].x {
				a, b := pts[i-1], pts[i]
				z = a.z + (stat-a.x)*(b.z-a.z)/(b.x-a.x)
				break
			}
		}
	}
	return distuv.UnitNormal.CDF(z)
}

type olsFit struct {
	beta  []float64
	se    []float64
	resid []float64
	s2    float64
}

// ols fits y on x by least squares.
func ols(x *mat.Dense, y []float64) (*olsFit, error) {
	n, k := x.Dims()
	if n <= k {
		return nil, archerr.InsufficientHistory("%d observations for %d regressors", n, k)
	}
	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var chol mat.Cholesky
	if !chol.Factorize(&xtx) {
		return nil, archerr.Numerical("regressors are collinear")
	}
	yv := mat.NewVecDense(n, y)
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), yv)
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, archerr.Wrap(err, "solving normal equations")
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	sse := 0.0
	for i := range resid {
		resid[i] = y[i] - fitted.AtVec(i)
		sse += resid[i] * resid[i]
	}
	s2 := sse / float64(n-k)

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, archerr.Wrap(err, "inverting normal equations")
	}
	se := make([]float64, k)
	b := make([]float64, k)
	for i := 0; i < k; i++ {
		se[i] = math.Sqrt(s2 * inv.At(i, i))
		b[i] = beta.AtVec(i)
	}
	return &olsFit{beta: b, se: se, resid: resid, s2: s2}, nil
}

func checkSeries(series *timeseries.Series, minObs int) error {
	if series == nil || series.Len() < minObs {
		return archerr.InsufficientHistory("test needs at least %d observations", minObs)
	}
	for i, v := range series.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return archerr.Configuration("observation %d is not finite", i)
		}
	}
	return nil
}

// dfRegression builds Δy_t on [trend, y_{t-1}, Δy_{t-1..t-lags}] and returns
// the fit and the column of y_{t-1}.
func dfRegression(y []float64, trend Trend, lags int) (*olsFit, int, error) {
	n := len(y)
	dy := make([]float64, n-1)
	for i := 1; i < n; i++ {
		dy[i-1] = y[i] - y[i-1]
	}
	nObs := n - 1 - lags
	nDet := len(trend.deterministic(0))
	k := nDet + 1 + lags
	x := mat.NewDense(nObs, k, nil)
	target := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + lags // index into dy
		target[i] = dy[t]
		col := 0
		for _, d := range trend.deterministic(t) {
			x.Set(i, col, d)
			col++
		}
		x.Set(i, col, y[t])
		for j := 1; j <= lags; j++ {
			x.Set(i, col+j, dy[t-j])
		}
	}
	fit, err := ols(x, target)
	return fit, nDet, err
}

// ADF runs the augmented Dickey-Fuller test. A negative lags selects
// floor((n-1)^(1/3)) lags.
func ADF(series *timeseries.Series, trend Trend, lags int) (*TestResult, error) {
	if err := checkSeries(series, 10); err != nil {
		return nil, err
	}
	n := series.Len()
	if lags < 0 {
		lags = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if n-1-lags < 10 {
		return nil, archerr.InsufficientHistory("%d lags leave fewer than 10 observations", lags)
	}

	fit, col, err := dfRegression(series.Values, trend, lags)
	if err != nil {
		return nil, err
	}
	tau := fit.beta[col] / fit.se[col]
	nObs := n - 1 - lags
	cv := dfCriticalValues(trend, nObs)
	p := tailPValue(tau, cv, true)
	return &TestResult{
		Name:           "Augmented Dickey-Fuller",
		Statistic:      tau,
		PValue:         p,
		Lags:           lags,
		NObs:           nObs,
		Trend:          trend,
		CriticalValues: cv,
		Stationary:     p < 0.05,
	}, nil
}

// neweyWest is the Bartlett-weighted long-run variance of e.
func neweyWest(e []float64, lags int) float64 {
	n := float64(len(e))
	s := 0.0
	for _, v := range e {
		s += v * v
	}
	s /= n
	for l := 1; l <= lags; l++ {
		cov := 0.0
		for i := l; i < len(e); i++ {
			cov += e[i] * e[i-l]
		}
		s += 2 * (1 - float64(l)/float64(lags+1)) * cov / n
	}
	return s
}

// PhillipsPerron computes the Z-tau statistic. A negative lags selects
// ceil(12 (n/100)^(1/4)) Newey-West lags.
func PhillipsPerron(series *timeseries.Series, trend Trend, lags int) (*TestResult, error) {
	if err := checkSeries(series, 10); err != nil {
		return nil, err
	}
	n := series.Len()
	if lags < 0 {
		lags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if trend == ConstantTrendSquared {
		return nil, archerr.Configuration("Phillips-Perron supports trends n, c and ct")
	}

	fit, col, err := dfRegression(series.Values, trend, 0)
	if err != nil {
		return nil, err
	}
	nObs := n - 1
	gamma0 := 0.0
	for _, e := range fit.resid {
		gamma0 += e * e
	}
	gamma0 /= float64(nObs)
	lambda2 := neweyWest(fit.resid, lags)
	lambda := math.Sqrt(lambda2)
	s := math.Sqrt(fit.s2)

	tau := fit.beta[col] / fit.se[col]
	z := math.Sqrt(gamma0/lambda2)*tau - (lambda2-gamma0)*float64(nObs)*fit.se[col]/(2*lambda*s)

	cv := dfCriticalValues(trend, nObs)
	p := tailPValue(z, cv, true)
	return &TestResult{
		Name:           "Phillips-Perron",
		Statistic:      z,
		PValue:         p,
		Lags:           lags,
		NObs:           nObs,
		Trend:          trend,
		CriticalValues: cv,
		Stationary:     p < 0.05,
	}, nil
}

var kpssCritical = map[Trend]map[string]float64{
	Constant:      {"10%": 0.347, "5%": 0.463, "2.5%": 0.574, "1%": 0.739},
	ConstantTrend: {"10%": 0.119, "5%": 0.146, "2.5%": 0.176, "1%": 0.216},
}

// KPSS runs the Kwiatkowski-Phillips-Schmidt-Shin test whose null is
// stationarity around the trend. Only Constant and ConstantTrend apply.
func KPSS(series *timeseries.Series, trend Trend, lags int) (*TestResult, error) {
	if err := checkSeries(series, 10); err != nil {
		return nil, err
	}
	cv, ok := kpssCritical[trend]
	if !ok {
		return nil, archerr.Configuration("KPSS supports trends c and ct, got %s", trend)
	}
	n := series.Len()
	if lags < 0 {
		lags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	lags = min(lags, n-1)

	x := mat.NewDense(n, len(trend.deterministic(0)), nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, trend.deterministic(i))
	}
	fit, err := ols(x, series.Values)
	if err != nil {
		return nil, err
	}

	eta := 0.0
	cum := 0.0
	for _, e := range fit.resid {
		cum += e
		eta += cum * cum
	}
	s2 := neweyWest(fit.resid, lags)
	if s2 <= 0 {
		return nil, archerr.Numerical("long-run variance is not positive")
	}
	stat := eta / (float64(n) * float64(n) * s2)

	table := make(map[string]float64, len(cv))
	for k, v := range cv {
		table[k] = v
	}
	p := math.Max(math.Min(tailPValue(stat, cv, false), 1), 0)
	return &TestResult{
		Name:           "KPSS",
		Statistic:      stat,
		PValue:         p,
		Lags:           lags,
		NObs:           n,
		Trend:          trend,
		CriticalValues: table,
		Stationary:     p >= 0.05,
	}, nil
}
