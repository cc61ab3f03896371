package autoarch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/mean"
	"github.com/sartorproj/goarch/stats"
	"github.com/sartorproj/goarch/timeseries"
	"github.com/sartorproj/goarch/volatility"
)

// Config holds configuration for the order search.
type Config struct {
	MaxLags     int     // Maximum autoregressive lag of the mean (default: 2)
	MaxP        int     // Maximum symmetric innovation order (default: 2)
	MaxO        int     // Maximum asymmetric innovation order (default: 1)
	MaxQ        int     // Maximum lagged variance order (default: 2)
	Power       float64 // Power of the GARCH recursion (default: 2)
	Criterion   string  // Information criterion: "aic" or "bic" (default: "bic")
	StationTest string  // Stationarity test: "adf" or "kpss" (default: "adf")
	Dist        distribution.Kind
	Workers     int // Fits run at once (0 means no limit)
	Seed        uint64
	Logger      *zap.Logger
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxLags:     2,
		MaxP:        2,
		MaxO:        1,
		MaxQ:        2,
		Power:       2,
		Criterion:   "bic",
		StationTest: "adf",
		Dist:        distribution.KindNormal,
		Workers:     4,
		Seed:        1,
	}
}

// Candidate identifies one model of the grid.
type Candidate struct {
	Lags int
	P    int
	O    int
	Q    int
}

// String formats the candidate as AR(p)-GARCH(p,o,q).
func (c Candidate) String() string {
	return fmt.Sprintf("AR(%d)-GARCH(%d,%d,%d)", c.Lags, c.P, c.O, c.Q)
}

// Result is the selected model.
type Result struct {
	Candidate
	Model *mean.Model
	Fit   *mean.FitResult

	AIC       float64
	BIC       float64
	LogLik    float64
	Criterion float64

	// Search information
	ModelsEvaluated int
	ModelsFailed    int

	// Stationarity of the input series under StationTest. A GARCH fit
	// assumes stationary returns, so a false value usually means prices
	// were passed instead of returns.
	Stationarity *stats.TestResult
}

func (c *Config) validate() error {
	if c.MaxLags < 0 || c.MaxO < 0 || c.MaxQ < 0 {
		return archerr.Configuration("orders must be non-negative")
	}
	if c.MaxP < 1 {
		return archerr.Configuration("MaxP must be at least 1, got %d", c.MaxP)
	}
	if c.Power <= 0 {
		return archerr.Configuration("power must be positive, got %g", c.Power)
	}
	switch strings.ToLower(c.Criterion) {
	case "aic", "bic":
	default:
		return archerr.Configuration("unknown criterion %q", c.Criterion)
	}
	switch strings.ToLower(c.StationTest) {
	case "adf", "kpss", "":
	default:
		return archerr.Configuration("unknown stationarity test %q", c.StationTest)
	}
	return nil
}

// Grid lists every candidate the search fits.
func (c *Config) Grid() []Candidate {
	var grid []Candidate
	for l := 0; l <= c.MaxLags; l++ {
		for p := 1; p <= c.MaxP; p++ {
			for o := 0; o <= c.MaxO; o++ {
				for q := 0; q <= c.MaxQ; q++ {
					grid = append(grid, Candidate{Lags: l, P: p, O: o, Q: q})
				}
			}
		}
	}
	return grid
}

// Select fits every candidate of the grid and returns the one with the
// smallest criterion. Candidates that fail to fit are skipped. An error is
// returned only when the configuration is invalid, ctx is cancelled or no
// candidate could be fitted.
func Select(ctx context.Context, y *timeseries.Series, x *timeseries.Frame, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dist, err := distribution.New(cfg.Dist)
	if err != nil {
		return nil, err
	}

	stationarity, err := testStationarity(y, cfg.StationTest)
	if err != nil {
		logger.Warn("stationarity test failed", zap.Error(err))
	} else if !stationarity.Stationary {
		logger.Warn("series does not look stationary",
			zap.String("test", stationarity.Name),
			zap.Float64("p_value", stationarity.PValue))
	}

	grid := cfg.Grid()
	fits := make([]*mean.FitResult, len(grid))
	models := make([]*mean.Model, len(grid))

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, c := range grid {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, fit, err := fitCandidate(y, x, c, cfg, dist)
			if err != nil {
				logger.Debug("candidate failed", zap.Stringer("model", c), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			models[i], fits[i] = m, fit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := -1
	bestCriterion := math.Inf(1)
	for i, fit := range fits {
		if fit == nil {
			continue
		}
		crit := criterion(fit, cfg.Criterion)
		if math.IsNaN(crit) {
			continue
		}
		// Ties go to the earlier, smaller candidate.
		if crit < bestCriterion {
			best, bestCriterion = i, crit
		}
	}
	if best < 0 {
		return nil, archerr.Numerical("none of the %d candidates could be fitted", len(grid))
	}

	fit := fits[best]
	res := &Result{
		Candidate:       grid[best],
		Model:           models[best],
		Fit:             fit,
		AIC:             fit.AIC,
		BIC:             fit.BIC,
		LogLik:          fit.LogLikelihood,
		Criterion:       bestCriterion,
		ModelsEvaluated: len(grid) - failed,
		ModelsFailed:    failed,
		Stationarity:    stationarity,
	}
	logger.Info("order selected",
		zap.Stringer("model", res.Candidate),
		zap.Float64(strings.ToLower(cfg.Criterion), bestCriterion),
		zap.Int("evaluated", res.ModelsEvaluated))
	return res, nil
}

func fitCandidate(y *timeseries.Series, x *timeseries.Frame, c Candidate, cfg *Config, dist distribution.Distribution) (*mean.Model, *mean.FitResult, error) {
	vol, err := volatility.NewGARCH(c.P, c.O, c.Q, cfg.Power)
	if err != nil {
		return nil, nil, err
	}
	opts := []mean.Option{
		mean.WithVolatility(vol),
		mean.WithDistribution(dist),
		mean.WithHoldBack(cfg.MaxLags),
		mean.WithSeed(cfg.Seed),
	}
	var m *mean.Model
	switch {
	case c.Lags > 0:
		m, err = mean.NewARX(y, x, mean.LagsUpTo(c.Lags), opts...)
	case x != nil && x.Width() > 0:
		m, err = mean.NewLS(y, x, opts...)
	default:
		m, err = mean.NewConstantMean(y, opts...)
	}
	if err != nil {
		return nil, nil, err
	}
	fit, err := m.Fit()
	if err != nil {
		return nil, nil, err
	}
	return m, fit, nil
}

func criterion(fit *mean.FitResult, name string) float64 {
	if strings.EqualFold(name, "aic") {
		return fit.AIC
	}
	return fit.BIC
}

func testStationarity(y *timeseries.Series, test string) (*stats.TestResult, error) {
	if strings.EqualFold(test, "kpss") {
		return stats.KPSS(y, stats.Constant, -1)
	}
	return stats.ADF(y, stats.Constant, -1)
}
