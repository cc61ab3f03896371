package mean

import (
	"context"
	"math"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/estimate"
)

// Window is a half-open range [First, Last) of observation indexes.
type Window struct {
	First int
	Last  int
}

// RollingWindows returns fixed-length windows of size obs advancing by step
// over n observations.
func RollingWindows(n, size, step int) []Window {
	if size < 1 || step < 1 {
		return nil
	}
	var windows []Window
	for first := 0; first+size <= n; first += step {
		windows = append(windows, Window{First: first, Last: first + size})
	}
	return windows
}

// ExpandingWindows returns windows starting at 0 whose end grows by step
// from minSize to n.
func ExpandingWindows(n, minSize, step int) []Window {
	if minSize < 1 || step < 1 {
		return nil
	}
	var windows []Window
	for last := minSize; last <= n; last += step {
		windows = append(windows, Window{First: 0, Last: last})
	}
	return windows
}

type fitConfig struct {
	window  Window
	cov     estimate.CovarianceType
	start   []float64
	estOpts []estimate.Option
}

// FitOption configures a single fit.
type FitOption func(*fitConfig)

// WithWindow restricts estimation to observations [first, last).
func WithWindow(first, last int) FitOption {
	return func(c *fitConfig) {
		c.window = Window{First: first, Last: last}
	}
}

// WithCovariance selects the parameter covariance estimator.
func WithCovariance(kind estimate.CovarianceType) FitOption {
	return func(c *fitConfig) {
		c.cov = kind
	}
}

// WithStartingValues replaces the heuristic starting values.
func WithStartingValues(start []float64) FitOption {
	return func(c *fitConfig) {
		c.start = slices.Clone(start)
	}
}

// WithOptimizer passes options to the estimator.
func WithOptimizer(opts ...estimate.Option) FitOption {
	return func(c *fitConfig) {
		c.estOpts = append(c.estOpts, opts...)
	}
}

func (m *Model) fitConfig(opts []FitOption) fitConfig {
	cfg := fitConfig{window: Window{First: 0, Last: len(m.y)}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// span resolves a window to the estimation range.
func (m *Model) span(w Window) (lo, hi int, err error) {
	if w.First < 0 || w.Last > len(m.y) || w.First >= w.Last {
		return 0, 0, archerr.Configuration("window [%d, %d) outside the %d observations", w.First, w.Last, len(m.y))
	}
	lo, hi = max(w.First, m.firstUsable()), w.Last
	if hi-lo <= m.NumParams() {
		return 0, 0, archerr.Configuration("window [%d, %d) leaves %d observations for %d parameters", w.First, w.Last, max(hi-lo, 0), m.NumParams())
	}
	return lo, hi, nil
}

// FitResult is the outcome of Fit or Fix. Per-observation slices cover the
// whole sample and are NaN outside the estimation window.
type FitResult struct {
	Model *Model

	Params    []float64
	Names     []string
	StdErrors []float64
	Cov       *mat.SymDense
	CovType   estimate.CovarianceType
	// CovError records why the covariance could not be estimated.
	CovError error

	LogLikelihood float64
	AIC           float64
	BIC           float64
	NumObs        int

	Converged  bool
	Message    string
	Iterations int
	FuncEvals  int
	Fixed      bool

	Window   Window
	FirstObs int
	LastObs  int
	Backcast float64

	Resids   []float64
	Sigma2   []float64
	CondMean []float64
}

// Fit estimates every parameter by maximum likelihood. Failure to converge
// is reported in the result, not as an error.
func (m *Model) Fit(opts ...FitOption) (*FitResult, error) {
	cfg := m.fitConfig(opts)
	lo, hi, err := m.span(cfg.window)
	if err != nil {
		return nil, err
	}

	beta, err := m.ols(lo, hi)
	if err != nil {
		return nil, err
	}
	olsResids := m.residsFrom(beta, lo, hi)
	backcast := m.vol.Backcast(olsResids)
	layout, err := m.layout(olsResids)
	if err != nil {
		return nil, err
	}

	heuristic := m.startingValues(beta, olsResids, backcast)
	start := cfg.start
	if start == nil {
		start = heuristic
	} else if len(start) != m.NumParams() {
		return nil, archerr.InvalidParameter("%d starting values for %d parameters", len(start), m.NumParams())
	}

	problem := estimate.Problem{
		Layout:   layout,
		Start:    start,
		Fallback: heuristic,
		NegLogLik: func(x []float64) (float64, error) {
			ll, _, err := m.evaluate(x, lo, hi, backcast, nil)
			return -ll, err
		},
		LogLikObs: func(x, dst []float64) error {
			_, _, err := m.evaluate(x, lo, hi, backcast, dst)
			return err
		},
		NObs: hi - lo,
	}

	est := estimate.New(append([]estimate.Option{estimate.WithLogger(m.logger)}, cfg.estOpts...)...)
	m.logger.Debug("fitting model",
		zap.Stringer("model", m),
		zap.Int("first_obs", lo),
		zap.Int("last_obs", hi))
	res, err := est.Minimize(problem)
	if err != nil {
		return nil, err
	}

	fit := m.newResult(res.X, cfg.window, lo, hi, backcast)
	fit.Converged = res.Converged && !math.IsNaN(fit.LogLikelihood)
	fit.Message = res.Message
	fit.Iterations = res.Iterations
	fit.FuncEvals = res.FuncEvals
	fit.CovType = cfg.cov

	fit.Cov, fit.CovError = estimate.Covariance(problem, res.X, cfg.cov)
	if fit.CovError != nil {
		m.logger.Warn("parameter covariance unavailable", zap.Error(fit.CovError))
	} else {
		fit.StdErrors = estimate.StdErrors(fit.Cov)
	}
	return fit, nil
}

// Fix evaluates the model at params without estimation. Parameters outside
// a component's domain are rejected with an InvalidParameter error.
func (m *Model) Fix(params []float64, opts ...FitOption) (*FitResult, error) {
	if err := m.validate(params); err != nil {
		return nil, err
	}
	cfg := m.fitConfig(opts)
	lo, hi, err := m.span(cfg.window)
	if err != nil {
		return nil, err
	}
	mp, _, _, _ := m.split(params)
	backcast := m.vol.Backcast(m.residsFrom(mp, lo, hi))
	if _, _, err := m.evaluate(params, lo, hi, backcast, nil); err != nil {
		return nil, err
	}
	fit := m.newResult(slices.Clone(params), cfg.window, lo, hi, backcast)
	fit.Converged = true
	fit.Fixed = true
	fit.Message = "parameters fixed"
	return fit, nil
}

func (m *Model) startingValues(beta, resids []float64, backcast float64) []float64 {
	vp := m.vol.StartingValues(resids)
	sigma2 := make([]float64, len(resids))
	std := make([]float64, len(resids))
	if err := m.vol.ComputeVariance(vp, resids, backcast, sigma2); err == nil {
		for i, e := range resids {
			std[i] = e / math.Sqrt(sigma2[i])
		}
	} else {
		copy(std, resids)
	}
	start := slices.Clone(beta)
	start = append(start, vp...)
	return append(start, m.dist.StartingValues(std)...)
}

func (m *Model) newResult(params []float64, w Window, lo, hi int, backcast float64) *FitResult {
	T := len(m.y)
	fit := &FitResult{
		Model:         m,
		Params:        params,
		Names:         m.ParamNames(),
		LogLikelihood: math.NaN(),
		AIC:           math.NaN(),
		BIC:           math.NaN(),
		NumObs:        hi - lo,
		Window:        w,
		FirstObs:      lo,
		LastObs:       hi,
		Backcast:      backcast,
		Resids:        nanSlice(T),
		Sigma2:        nanSlice(T),
		CondMean:      nanSlice(T),
	}

	mp, _, _, _ := m.split(params)
	resids := m.residsFrom(mp, lo, hi)
	for i, e := range resids {
		fit.Resids[lo+i] = e
		fit.CondMean[lo+i] = m.y[lo+i] - e
	}

	ll, sigma2, err := m.evaluate(params, lo, hi, backcast, nil)
	if err != nil {
		m.logger.Warn("fitted parameters do not evaluate", zap.Error(err))
		return fit
	}
	copy(fit.Sigma2[lo:], sigma2)
	fit.LogLikelihood = ll

	k, n := float64(len(params)), float64(hi-lo)
	fit.AIC = -2*ll + 2*k
	fit.BIC = -2*ll + k*math.Log(n)
	return fit
}

// Param returns the named parameter.
func (f *FitResult) Param(name string) (float64, bool) {
	i := slices.Index(f.Names, name)
	if i < 0 {
		return 0, false
	}
	return f.Params[i], true
}

// CondVol returns the conditional standard deviation.
func (f *FitResult) CondVol() []float64 {
	out := make([]float64, len(f.Sigma2))
	for i, v := range f.Sigma2 {
		out[i] = math.Sqrt(v)
	}
	return out
}

// StdResids returns residuals divided by the conditional volatility.
func (f *FitResult) StdResids() []float64 {
	out := make([]float64, len(f.Resids))
	for i, e := range f.Resids {
		out[i] = e / math.Sqrt(f.Sigma2[i])
	}
	return out
}

// TValues returns parameter estimates over their standard errors, or nil
// without a covariance.
func (f *FitResult) TValues() []float64 {
	if f.StdErrors == nil {
		return nil
	}
	out := make([]float64, len(f.Params))
	for i, p := range f.Params {
		out[i] = p / f.StdErrors[i]
	}
	return out
}

// PValues returns two-sided normal p-values of the t-values.
func (f *FitResult) PValues() []float64 {
	tv := f.TValues()
	if tv == nil {
		return nil
	}
	out := make([]float64, len(tv))
	for i, t := range tv {
		out[i] = 2 * distuv.UnitNormal.Survival(math.Abs(t))
	}
	return out
}

// FitRolling fits the model on every window, running up to workers fits
// at once. Results are in window order.
func (m *Model) FitRolling(ctx context.Context, windows []Window, workers int, opts ...FitOption) ([]*FitResult, error) {
	results := make([]*FitResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, w := range windows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fit, err := m.Fit(append(slices.Clone(opts), WithWindow(w.First, w.Last))...)
			if err != nil {
				return archerr.Wrapf(err, "window [%d, %d)", w.First, w.Last)
			}
			results[i] = fit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
