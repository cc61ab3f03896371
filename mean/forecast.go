package mean

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/bootstrap"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/volatility"
)

// FutureX supplies exogenous regressors for forecasting. Row r, column k
// of a regressor's table is its value for y at origin r plus k+1. This is
// the target-aligned regressor shifted back one period.
type FutureX interface {
	resolve(names []string, h int) ([][][]float64, error)
}

type xByName map[string][][]float64

// XByName maps each regressor name to a rows × horizon table.
func XByName(tables map[string][][]float64) FutureX {
	return xByName(tables)
}

func (x xByName) resolve(names []string, h int) ([][][]float64, error) {
	if len(x) != len(names) {
		return nil, archerr.ShapeMismatch("future values for %d regressors, model has %d", len(x), len(names))
	}
	out := make([][][]float64, len(names))
	for i, name := range names {
		table, ok := x[name]
		if !ok {
			return nil, archerr.ShapeMismatch("no future values for regressor %q", name)
		}
		out[i] = table
	}
	return out, nil
}

type xArray [][][]float64

// XArray is a regressor × row × horizon array in model regressor order.
func XArray(values [][][]float64) FutureX {
	return xArray(values)
}

func (x xArray) resolve(names []string, h int) ([][][]float64, error) {
	if len(x) != len(names) {
		return nil, archerr.ShapeMismatch("future values for %d regressors, model has %d", len(x), len(names))
	}
	return x, nil
}

type xTable [][]float64

// XTable is a rows × horizon table for a single-regressor model.
func XTable(values [][]float64) FutureX {
	return xTable(values)
}

func (x xTable) resolve(names []string, h int) ([][][]float64, error) {
	if len(names) != 1 {
		return nil, archerr.ShapeMismatch("a single table needs a single-regressor model, model has %d", len(names))
	}
	return [][][]float64{x}, nil
}

type xVector []float64

// XVector is a flat sequence for a single-regressor model. A sequence of
// length h is one row of horizons; with h = 1 any other length is one
// value per row.
func XVector(values []float64) FutureX {
	return xVector(values)
}

func (x xVector) resolve(names []string, h int) ([][][]float64, error) {
	if len(names) != 1 {
		return nil, archerr.ShapeMismatch("a vector needs a single-regressor model, model has %d", len(names))
	}
	if len(x) == h {
		return [][][]float64{{x}}, nil
	}
	if h != 1 {
		return nil, archerr.ShapeMismatch("vector of length %d for horizon %d", len(x), h)
	}
	table := make([][]float64, len(x))
	for i, v := range x {
		table[i] = []float64{v}
	}
	return [][][]float64{table}, nil
}

type forecastConfig struct {
	horizon  int
	start    int
	hasStart bool
	method   volatility.Method
	sims     int
	seed     uint64
	hasSeed  bool
	x        FutureX
}

// ForecastOption configures Forecast.
type ForecastOption func(*forecastConfig)

// WithHorizon sets the number of steps ahead. The default is 1.
func WithHorizon(h int) ForecastOption {
	return func(c *forecastConfig) {
		c.horizon = h
	}
}

// WithStart sets the first origin. Forecasts are produced from every
// origin between it and the last observation. The earliest origin is the
// period before the first usable observation. The default is the last
// observation.
func WithStart(origin int) ForecastOption {
	return func(c *forecastConfig) {
		c.start = origin
		c.hasStart = true
	}
}

// WithMethod selects analytic, simulation or bootstrap forecasts.
func WithMethod(m volatility.Method) ForecastOption {
	return func(c *forecastConfig) {
		c.method = m
	}
}

// WithSimulations sets the number of paths per origin. The default is 1000.
func WithSimulations(n int) ForecastOption {
	return func(c *forecastConfig) {
		c.sims = n
	}
}

// WithForecastSeed makes simulation and bootstrap forecasts reproducible.
func WithForecastSeed(seed uint64) ForecastOption {
	return func(c *forecastConfig) {
		c.seed = seed
		c.hasSeed = true
	}
}

// WithFutureX supplies regressor values for models with exogenous
// regressors.
func WithFutureX(x FutureX) ForecastOption {
	return func(c *forecastConfig) {
		c.x = x
	}
}

// Forecast holds forecasts indexed origin × horizon.
type Forecast struct {
	Origins    []int
	Timestamps []time.Time
	Horizon    int
	Method     volatility.Method

	Mean             [][]float64
	ResidualVariance [][]float64
	Variance         [][]float64

	// Simulations is nil for analytic forecasts.
	Simulations *Simulations

	dist       distribution.Distribution
	distParams []float64
}

// Simulations holds simulated paths indexed origin × simulation × horizon.
type Simulations struct {
	Values            [][][]float64
	Residuals         [][][]float64
	StdResiduals      [][][]float64
	ResidualVariances [][][]float64
}

// Forecast produces forecasts from the fitted parameters.
func (f *FitResult) Forecast(opts ...ForecastOption) (*Forecast, error) {
	m := f.Model
	T := len(m.y)
	cfg := forecastConfig{horizon: 1, start: T - 1, sims: 1000}
	for _, opt := range opts {
		opt(&cfg)
	}
	h := cfg.horizon
	if h < 1 {
		return nil, archerr.Configuration("horizon must be at least 1, got %d", h)
	}
	if cfg.start < 0 || cfg.start >= T {
		return nil, archerr.InsufficientHistory("origin %d outside [0, %d]", cfg.start, T-1)
	}
	lo := f.FirstObs
	if cfg.start < lo-1 {
		return nil, archerr.InsufficientHistory("origin %d precedes %d, the period before the first usable observation", cfg.start, lo-1)
	}
	nOrig := T - cfg.start

	x, xRowOffset, err := m.futureX(cfg.x, h, nOrig, cfg.start)
	if err != nil {
		return nil, err
	}

	mp, vp, dp, err := m.split(f.Params)
	if err != nil {
		return nil, err
	}
	var rng *rand.Rand
	if cfg.hasSeed {
		rng = seeded(cfg.seed)
	} else {
		rng = m.seeds.next()
	}
	vf, err := m.vol.Forecast(volatility.ForecastRequest{
		Params:      vp,
		Resids:      m.residsFrom(mp, lo, T),
		Backcast:    f.Backcast,
		Start:       cfg.start - lo,
		Horizon:     h,
		Method:      cfg.method,
		Simulations: cfg.sims,
		Rng:         rng,
		Dist:        m.dist,
		DistParams:  dp,
	})
	if err != nil {
		return nil, err
	}

	fc := &Forecast{
		Origins:          make([]int, nOrig),
		Horizon:          h,
		Method:           cfg.method,
		Mean:             make([][]float64, nOrig),
		ResidualVariance: vf.Variance,
		Variance:         make([][]float64, nOrig),
		dist:             m.dist,
		distParams:       append([]float64(nil), dp...),
	}
	if m.timestamps != nil {
		fc.Timestamps = make([]time.Time, nOrig)
	}

	psi := m.impulse(mp, h)
	xAt := func(i, k int) []float64 {
		if x == nil {
			return nil
		}
		row := make([]float64, len(x))
		for j := range x {
			row[j] = x[j][i+xRowOffset][k]
		}
		return row
	}

	for i := 0; i < nOrig; i++ {
		origin := cfg.start + i
		fc.Origins[i] = origin
		if fc.Timestamps != nil {
			fc.Timestamps[i] = m.timestamps[origin]
		}
		fc.Mean[i] = m.meanPath(mp, origin, h, nil, func(k int) []float64 { return xAt(i, k) })

		total := make([]float64, h)
		for k := 0; k < h; k++ {
			for j := 0; j <= k; j++ {
				total[k] += psi[j] * psi[j] * vf.Variance[i][k-j]
			}
		}
		fc.Variance[i] = total
	}

	if vf.Paths != nil {
		fc.Simulations = m.simulatedPaths(mp, cfg.start, vf.Paths, xAt)
	}
	return fc, nil
}

// futureX resolves and checks the future regressors. The returned offset
// maps origin position i to table row i+offset.
func (m *Model) futureX(fx FutureX, h, nOrig, start int) ([][][]float64, int, error) {
	width := m.x.Width()
	if width == 0 {
		if fx != nil {
			return nil, 0, archerr.ShapeMismatch("model has no regressors but future values were given")
		}
		return nil, 0, nil
	}
	if fx == nil {
		return nil, 0, archerr.Configuration("model has %d regressors; forecasts need their future values", width)
	}
	x, err := fx.resolve(m.x.Names, h)
	if err != nil {
		return nil, 0, err
	}
	rows := len(x[0])
	for j, table := range x {
		if len(table) != rows {
			return nil, 0, archerr.ShapeMismatch("regressor %q has %d rows, want %d", m.x.Names[j], len(table), rows)
		}
		for r, row := range table {
			if len(row) != h {
				return nil, 0, archerr.ShapeMismatch("regressor %q row %d has %d horizons, want %d", m.x.Names[j], r, len(row), h)
			}
		}
	}
	switch rows {
	case nOrig:
		return x, 0, nil
	case len(m.y):
		return x, start, nil
	}
	return nil, 0, archerr.ShapeMismatch("future regressors have %d rows, want %d origins or %d observations", rows, nOrig, len(m.y))
}

// meanPath runs the mean recursion h steps past origin. shocks, when
// non-nil, are added to each step.
func (m *Model) meanPath(mp []float64, origin, h int, shocks []float64, x func(k int) []float64) []float64 {
	lag := m.maxLag
	buf := make([]float64, lag+h)
	copy(buf, m.y[origin+1-lag:origin+1])
	for k := 0; k < h; k++ {
		v := floats.Dot(m.regressors(lag+k, buf, x(k)), mp)
		if shocks != nil {
			v += shocks[k]
		}
		buf[lag+k] = v
	}
	return buf[lag:]
}

// impulse returns the first h moving-average weights of the mean
// autoregression.
func (m *Model) impulse(mp []float64, h int) []float64 {
	ar := make([]float64, m.maxLag)
	off := 0
	if m.constant {
		off = 1
	}
	for i, w := range m.lags {
		share := mp[off+i] / float64(w.end-w.start)
		for l := w.start + 1; l <= w.end; l++ {
			ar[l-1] += share
		}
	}
	psi := make([]float64, h)
	psi[0] = 1
	for j := 1; j < h; j++ {
		for l := 1; l <= min(j, len(ar)); l++ {
			psi[j] += ar[l-1] * psi[j-l]
		}
	}
	return psi
}

func (m *Model) simulatedPaths(mp []float64, start int, paths *volatility.Paths, xAt func(i, k int) []float64) *Simulations {
	nOrig := len(paths.Variances)
	sims := &Simulations{
		Values:            make([][][]float64, nOrig),
		Residuals:         make([][][]float64, nOrig),
		StdResiduals:      paths.Shocks,
		ResidualVariances: paths.Variances,
	}
	for i := range nOrig {
		n := len(paths.Variances[i])
		sims.Values[i] = make([][]float64, n)
		sims.Residuals[i] = make([][]float64, n)
		x := func(k int) []float64 { return xAt(i, k) }
		for s := 0; s < n; s++ {
			z, v := paths.Shocks[i][s], paths.Variances[i][s]
			e := make([]float64, len(z))
			for k := range z {
				e[k] = z[k] * math.Sqrt(v[k])
			}
			sims.Residuals[i][s] = e
			sims.Values[i][s] = m.meanPath(mp, start+i, len(z), e, x)
		}
	}
	return sims
}

// Quantile returns the p-quantile of the forecast distribution for every
// origin and horizon. Simulation and bootstrap forecasts use the empirical
// quantile of the simulated paths.
func (fc *Forecast) Quantile(p float64) ([][]float64, error) {
	if !(p > 0 && p < 1) {
		return nil, archerr.InvalidParameter("probability %g outside (0, 1)", p)
	}
	out := make([][]float64, len(fc.Mean))
	if fc.Simulations != nil {
		for i, paths := range fc.Simulations.Values {
			out[i] = make([]float64, fc.Horizon)
			col := make([]float64, len(paths))
			for k := range out[i] {
				for s, path := range paths {
					col[s] = path[k]
				}
				q, err := bootstrap.Percentile(col, 100*p)
				if err != nil {
					return nil, err
				}
				out[i][k] = q
			}
		}
		return out, nil
	}

	z, err := fc.dist.PPF(fc.distParams, p)
	if err != nil {
		return nil, err
	}
	for i, row := range fc.Mean {
		out[i] = make([]float64, len(row))
		for k, mu := range row {
			out[i][k] = mu + math.Sqrt(fc.Variance[i][k])*z
		}
	}
	return out, nil
}
