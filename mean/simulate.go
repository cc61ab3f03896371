package mean

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/timeseries"
)

type simConfig struct {
	burn       int
	initial    float64
	hasInitial bool
	x          *timeseries.Frame
	rng        *rand.Rand
}

// SimOption configures Simulate.
type SimOption func(*simConfig)

// WithBurn discards the first n simulated observations. The default is 500.
func WithBurn(n int) SimOption {
	return func(c *simConfig) {
		c.burn = n
	}
}

// WithInitialValue sets the pre-sample value of y used by the lags. The
// default is the unconditional mean when it exists and zero otherwise.
func WithInitialValue(v float64) SimOption {
	return func(c *simConfig) {
		c.initial = v
		c.hasInitial = true
	}
}

// WithSimulationX supplies regressors for every simulated observation,
// burn-in included.
func WithSimulationX(x *timeseries.Frame) SimOption {
	return func(c *simConfig) {
		c.x = x
	}
}

// WithSimulationSeed makes the simulation reproducible.
func WithSimulationSeed(seed uint64) SimOption {
	return func(c *simConfig) {
		c.rng = seeded(seed)
	}
}

// Simulation holds aligned simulated observations, conditional variances
// and residuals.
type Simulation struct {
	Data     []float64
	Variance []float64
	Errors   []float64
}

// Simulate generates n observations from the model at params.
func (m *Model) Simulate(params []float64, n int, opts ...SimOption) (*Simulation, error) {
	if err := m.validate(params); err != nil {
		return nil, err
	}
	cfg := simConfig{burn: 500}
	for _, opt := range opts {
		opt(&cfg)
	}
	if n < 1 || cfg.burn < 0 {
		return nil, archerr.Configuration("cannot simulate %d observations with burn %d", n, cfg.burn)
	}
	total := n + cfg.burn

	width := m.x.Width()
	switch {
	case width > 0 && cfg.x == nil:
		return nil, archerr.Configuration("model has %d regressors; simulation needs their values", width)
	case cfg.x.Width() != width:
		return nil, archerr.ShapeMismatch("simulation regressors have %d columns, want %d", cfg.x.Width(), width)
	case width > 0 && cfg.x.Len() != total:
		return nil, archerr.ShapeMismatch("simulation regressors have %d rows, want %d", cfg.x.Len(), total)
	}

	rng := cfg.rng
	if rng == nil {
		rng = m.seeds.next()
	}
	mp, vp, dp, _ := m.split(params)
	shocks, err := distribution.NewSampler(m.dist, dp, rng)
	if err != nil {
		return nil, err
	}
	errs, sigma2, err := m.vol.Simulate(vp, total, 0, shocks)
	if err != nil {
		return nil, err
	}

	initial := cfg.initial
	if !cfg.hasInitial {
		initial = m.unconditionalMean(mp)
	}
	lag := m.maxLag
	y := make([]float64, lag+total)
	for i := 0; i < lag; i++ {
		y[i] = initial
	}
	for t := 0; t < total; t++ {
		var x []float64
		if width > 0 {
			x = cfg.x.Row(t)
		}
		y[lag+t] = floats.Dot(m.regressors(lag+t, y, x), mp) + errs[t]
	}

	return &Simulation{
		Data:     y[lag+cfg.burn:],
		Variance: sigma2[cfg.burn:],
		Errors:   errs[cfg.burn:],
	}, nil
}

// unconditionalMean is c / (1 - Σφ) ignoring regressors, or zero when the
// autoregression has a unit root.
func (m *Model) unconditionalMean(mp []float64) float64 {
	if !m.constant {
		return 0
	}
	persistence := floats.Sum(mp[1 : 1+len(m.lags)])
	mu := mp[0] / (1 - persistence)
	if math.IsNaN(mu) || math.IsInf(mu, 0) || math.Abs(persistence) >= 1 {
		return 0
	}
	return mu
}
