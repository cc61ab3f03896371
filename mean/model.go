package mean

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/estimate"
	"github.com/sartorproj/goarch/timeseries"
	"github.com/sartorproj/goarch/volatility"
)

// Kind identifies the mean specification.
type Kind int

const (
	ZeroMean Kind = iota
	ConstantMean
	ARX
	HARX
	LS
)

// String returns the mean model name.
func (k Kind) String() string {
	switch k {
	case ZeroMean:
		return "Zero Mean"
	case ConstantMean:
		return "Constant Mean"
	case ARX:
		return "AR-X"
	case HARX:
		return "HAR-X"
	case LS:
		return "Least Squares"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// lagWindow averages y over [t-end, t-start).
type lagWindow struct {
	start, end int
}

func (w lagWindow) name(har bool) string {
	if har {
		return fmt.Sprintf("y[%d:%d]", w.start, w.end)
	}
	return fmt.Sprintf("y[%d]", w.end)
}

// Model is an immutable conditional mean specification combined with a
// volatility process and an innovation distribution. Models are safe for
// concurrent use.
type Model struct {
	kind       Kind
	name       string
	y          []float64
	timestamps []time.Time
	x          *timeseries.Frame
	lags       []lagWindow
	constant   bool
	holdBack   int

	vol    volatility.Process
	dist   distribution.Distribution
	logger *zap.Logger
	seeds  *seedStream

	// rhs[t] holds the regressors explaining y[t]; nil before the first
	// usable observation.
	rhs      [][]float64
	maxLag   int
	meanCols []string
}

// Option configures a Model at construction.
type Option func(*Model)

// WithVolatility sets the volatility process. The default is constant
// variance.
func WithVolatility(v volatility.Process) Option {
	return func(m *Model) {
		m.vol = v
	}
}

// WithDistribution sets the innovation distribution. The default is the
// standard normal.
func WithDistribution(d distribution.Distribution) Option {
	return func(m *Model) {
		m.dist = d
	}
}

// WithConstant toggles the intercept. It has no effect on ZeroMean.
func WithConstant(on bool) Option {
	return func(m *Model) {
		m.constant = on
	}
}

// WithHoldBack excludes the first n observations from every fit.
func WithHoldBack(n int) Option {
	return func(m *Model) {
		m.holdBack = n
	}
}

// WithLogger sets the logger passed to the estimator.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithSeed seeds the generator stream used by simulations and forecasts
// that are not given their own seed.
func WithSeed(seed uint64) Option {
	return func(m *Model) {
		m.seeds = newSeedStream(seed)
	}
}

// NewZeroMean creates a model with no conditional mean.
func NewZeroMean(y *timeseries.Series, opts ...Option) (*Model, error) {
	return build(ZeroMean, y, nil, nil, append(opts, WithConstant(false))...)
}

// NewConstantMean creates a model with a constant mean.
func NewConstantMean(y *timeseries.Series, opts ...Option) (*Model, error) {
	return build(ConstantMean, y, nil, nil, opts...)
}

// NewARX creates an autoregression on the listed lags of y plus the
// exogenous regressors in x. x may be nil.
func NewARX(y *timeseries.Series, x *timeseries.Frame, lags []int, opts ...Option) (*Model, error) {
	windows := make([]lagWindow, len(lags))
	for i, l := range lags {
		windows[i] = lagWindow{start: l - 1, end: l}
	}
	return build(ARX, y, x, windows, opts...)
}

// NewHARX creates a heterogeneous autoregression. Each lag l contributes
// the average of the previous l observations.
func NewHARX(y *timeseries.Series, x *timeseries.Frame, lags []int, opts ...Option) (*Model, error) {
	windows := make([]lagWindow, len(lags))
	for i, l := range lags {
		windows[i] = lagWindow{start: 0, end: l}
	}
	return build(HARX, y, x, windows, opts...)
}

// NewLS creates a regression of y on the exogenous regressors in x.
func NewLS(y *timeseries.Series, x *timeseries.Frame, opts ...Option) (*Model, error) {
	return build(LS, y, x, nil, opts...)
}

// LagsUpTo returns 1..n.
func LagsUpTo(n int) []int {
	lags := make([]int, n)
	for i := range lags {
		lags[i] = i + 1
	}
	return lags
}

func build(kind Kind, y *timeseries.Series, x *timeseries.Frame, lags []lagWindow, opts ...Option) (*Model, error) {
	if y == nil {
		return nil, archerr.Configuration("series is nil")
	}
	if err := y.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		kind:     kind,
		name:     y.Name,
		y:        slices.Clone(y.Values),
		lags:     lags,
		constant: kind != ZeroMean,
		vol:      volatility.NewConstantVariance(),
		dist:     distribution.NewNormal(),
		logger:   zap.NewNop(),
	}
	if y.HasTimestamps() {
		m.timestamps = slices.Clone(y.Timestamps)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.seeds == nil {
		m.seeds = newSeedStream(rand.Uint64())
	}
	if m.vol == nil || m.dist == nil {
		return nil, archerr.Configuration("volatility and distribution must not be nil")
	}
	if m.holdBack < 0 {
		return nil, archerr.Configuration("hold back must be non-negative, got %d", m.holdBack)
	}

	seen := make(map[lagWindow]bool, len(lags))
	for _, w := range lags {
		if w.end < 1 || w.start < 0 {
			return nil, archerr.Configuration("lags must be positive, got %d", w.end)
		}
		if seen[w] {
			return nil, archerr.Configuration("lag %d is repeated", w.end)
		}
		seen[w] = true
		m.maxLag = max(m.maxLag, w.end)
	}

	if x != nil && x.Width() > 0 {
		if kind == ZeroMean || kind == ConstantMean {
			return nil, archerr.Configuration("%s does not take regressors", kind)
		}
		if x.Len() != len(m.y) {
			return nil, archerr.Configuration("regressors have %d rows, series has %d", x.Len(), len(m.y))
		}
		if err := x.Validate(); err != nil {
			return nil, err
		}
		m.x = x.Slice(0, x.Len())
	}
	if kind == LS && m.x == nil && !m.constant {
		return nil, archerr.Configuration("least squares needs regressors or a constant")
	}

	m.buildRegressors()
	if m.firstUsable() >= len(m.y) {
		return nil, archerr.Configuration("%d observations leave none after the first %d", len(m.y), m.firstUsable())
	}
	return m, nil
}

func (m *Model) buildRegressors() {
	m.meanCols = m.meanCols[:0]
	if m.constant {
		m.meanCols = append(m.meanCols, "const")
	}
	for _, w := range m.lags {
		m.meanCols = append(m.meanCols, w.name(m.kind == HARX))
	}
	if m.x != nil {
		m.meanCols = append(m.meanCols, m.x.Names...)
	}

	m.rhs = make([][]float64, len(m.y))
	for t := m.maxLag; t < len(m.y); t++ {
		m.rhs[t] = m.regressors(t, m.y, m.xRow(t))
	}
}

func (m *Model) xRow(t int) []float64 {
	if m.x == nil {
		return nil
	}
	return m.x.Row(t)
}

// regressors assembles the row explaining observation t from history
// hist, which must hold at least t values.
func (m *Model) regressors(t int, hist, x []float64) []float64 {
	row := make([]float64, 0, len(m.meanCols))
	if m.constant {
		row = append(row, 1)
	}
	for _, w := range m.lags {
		row = append(row, windowMean(hist, t, w))
	}
	return append(row, x...)
}

func windowMean(hist []float64, t int, w lagWindow) float64 {
	sum := 0.0
	for i := t - w.end; i < t-w.start; i++ {
		sum += hist[i]
	}
	return sum / float64(w.end-w.start)
}

// Kind returns the mean specification.
func (m *Model) Kind() Kind { return m.kind }

// Volatility returns the volatility process.
func (m *Model) Volatility() volatility.Process { return m.vol }

// Distribution returns the innovation distribution.
func (m *Model) Distribution() distribution.Distribution { return m.dist }

// NumObs returns the length of the observed series.
func (m *Model) NumObs() int { return len(m.y) }

// Values returns a copy of the observed series.
func (m *Model) Values() []float64 { return slices.Clone(m.y) }

// Regressors returns the exogenous regressors, or nil.
func (m *Model) Regressors() *timeseries.Frame { return m.x }

// firstUsable is the first index with a defined conditional mean.
func (m *Model) firstUsable() int {
	return max(m.maxLag, m.holdBack)
}

// WithVolatility returns a copy of m using v.
func (m *Model) WithVolatility(v volatility.Process) *Model {
	c := *m
	c.vol = v
	return &c
}

// WithDistribution returns a copy of m using d.
func (m *Model) WithDistribution(d distribution.Distribution) *Model {
	c := *m
	c.dist = d
	return &c
}

// String describes the model components.
func (m *Model) String() string {
	return fmt.Sprintf("%s(%s, %s, %s)", m.kind, m.vol.Name(), m.dist.Name(), m.name)
}

// NumMeanParams returns the size of the mean block.
func (m *Model) NumMeanParams() int {
	return len(m.meanCols)
}

// NumParams returns the length of the full parameter vector.
func (m *Model) NumParams() int {
	return len(m.meanCols) + m.vol.NumParams() + m.dist.NumParams()
}

// ParamNames returns the names of the full parameter vector in order.
func (m *Model) ParamNames() []string {
	names := slices.Clone(m.meanCols)
	names = append(names, m.vol.ParamNames()...)
	return append(names, m.dist.ParamNames()...)
}

// Layout returns the parameter layout with volatility bounds scaled to the
// least-squares residuals of the full sample.
func (m *Model) Layout() (*estimate.Layout, error) {
	lo, hi := m.firstUsable(), len(m.y)
	beta, err := m.ols(lo, hi)
	if err != nil {
		return nil, err
	}
	return m.layout(m.residsFrom(beta, lo, hi))
}

func (m *Model) layout(resids []float64) (*estimate.Layout, error) {
	meanBounds := make([]estimate.Bound, len(m.meanCols))
	for i := range meanBounds {
		meanBounds[i] = estimate.Unbounded
	}
	return estimate.NewLayout(
		estimate.Block{Name: "mean", Names: slices.Clone(m.meanCols), Bounds: meanBounds},
		estimate.Block{
			Name:        "volatility",
			Names:       m.vol.ParamNames(),
			Bounds:      m.vol.Bounds(resids),
			Constraints: m.vol.Constraints(),
		},
		distribution.Block(m.dist),
	)
}

// split divides a full parameter vector into mean, volatility and
// distribution parts.
func (m *Model) split(params []float64) (mp, vp, dp []float64, err error) {
	if len(params) != m.NumParams() {
		return nil, nil, nil, archerr.InvalidParameter("parameter vector has length %d, want %d", len(params), m.NumParams())
	}
	k, v := len(m.meanCols), m.vol.NumParams()
	return params[:k], params[k : k+v], params[k+v:], nil
}

// validate checks params against each component's domain.
func (m *Model) validate(params []float64) error {
	mp, vp, dp, err := m.split(params)
	if err != nil {
		return err
	}
	for i, v := range mp {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return archerr.InvalidParameter("%s is not finite", m.meanCols[i])
		}
	}
	if err := m.vol.Validate(vp); err != nil {
		return err
	}
	return m.dist.Validate(dp)
}

// seedStream hands out per-call generator seeds.
type seedStream struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSeedStream(seed uint64) *seedStream {
	return &seedStream{rng: rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))}
}

func (s *seedStream) next() *rand.Rand {
	s.mu.Lock()
	a, b := s.rng.Uint64(), s.rng.Uint64()
	s.mu.Unlock()
	return rand.New(rand.NewPCG(a, b))
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x853c49e6748fea9b))
}
