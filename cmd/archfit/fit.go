package main

import (
	"context"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/autoarch"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/internal/config"
	"github.com/sartorproj/goarch/internal/tabular"
	"github.com/sartorproj/goarch/mean"
	"github.com/sartorproj/goarch/timeseries"
)

func newFitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fit",
		Short: "Estimate the model and write its forecasts",
		Long: `Estimate the configured model, or search the orders with --auto, then
forecast from the last observation. With --rolling-window the model is also
refitted on rolling windows with a one-step forecast past each.

The output holds a forecast table, a parameter table and, when rolling, a
rolling table. An .xlsx output gets one sheet per table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), a.cfg, a.logger)
		},
	}
}

func runFit(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	y, x, err := loadData(cfg)
	if err != nil {
		return err
	}
	logger.Info("data loaded",
		zap.String("path", cfg.Data.Path),
		zap.Int("n_obs", y.Len()),
		zap.Strings("regressors", cfg.Data.Regressors))

	model, fit, err := fitModel(ctx, cfg, y, x, logger)
	if err != nil {
		return err
	}
	logSummary(logger, fit.Summary())

	method, err := cfg.Method()
	if err != nil {
		return err
	}
	opts := []mean.ForecastOption{
		mean.WithHorizon(cfg.Forecast.Horizon),
		mean.WithMethod(method),
		mean.WithSimulations(cfg.Forecast.Simulations),
		mean.WithForecastSeed(cfg.Forecast.Seed),
	}
	if x != nil {
		opts = append(opts, mean.WithFutureX(futureX(x, y.Len()-1, cfg.Forecast.Horizon)))
	}
	fc, err := fit.Forecast(opts...)
	if err != nil {
		return err
	}
	forecastTable, err := tabular.ForecastTable(fc, 0.01, 0.05, 0.95, 0.99)
	if err != nil {
		return err
	}
	tables := []tabular.Table{forecastTable, tabular.ParamsTable(fit)}

	if cfg.Estimation.RollingWindow > 0 {
		rolling, err := rollingForecasts(ctx, cfg, model, x, logger)
		if err != nil {
			return err
		}
		tables = append(tables, rolling)
	}

	if err := tabular.Write(cfg.Output.Path, tables...); err != nil {
		return err
	}
	logger.Info("forecasts written",
		zap.String("path", cfg.Output.Path),
		zap.Int("horizon", fc.Horizon),
		zap.Stringer("method", fc.Method))
	return nil
}

func loadData(cfg *config.Config) (*timeseries.Series, *timeseries.Frame, error) {
	opts := timeseries.DefaultCSVOptions()
	opts.ValueColumn = cfg.Data.Column
	opts.DateColumn = cfg.Data.DateColumn
	opts.Regressors = cfg.Data.Regressors

	y, x, err := tabular.Load(cfg.Data.Path, opts)
	if err != nil {
		return nil, nil, err
	}
	kind, err := cfg.ReturnKind()
	if err != nil {
		return nil, nil, err
	}
	if kind == timeseries.Levels {
		return y, x, nil
	}
	if y, err = y.Returns(kind); err != nil {
		return nil, nil, err
	}
	if x != nil {
		// Regressors stay aligned with the return they explain.
		x = x.Slice(1, x.Len())
	}
	return y, x, nil
}

func fitModel(ctx context.Context, cfg *config.Config, y *timeseries.Series, x *timeseries.Frame, logger *zap.Logger) (*mean.Model, *mean.FitResult, error) {
	cov, err := cfg.CovarianceType()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Model.Auto {
		search := autoarch.DefaultConfig()
		search.MaxLags = slices.Max(append([]int{0}, cfg.Model.Lags...))
		search.MaxP = max(cfg.Model.P, 1)
		search.MaxO = cfg.Model.O
		search.MaxQ = cfg.Model.Q
		search.Power = cfg.Model.Power
		search.Criterion = cfg.Model.Criterion
		search.Dist = distribution.Kind(strings.ToLower(cfg.Model.Distribution))
		search.Workers = cfg.Estimation.Workers
		search.Seed = cfg.Forecast.Seed
		search.Logger = logger

		res, err := autoarch.Select(ctx, y, x, search)
		if err != nil {
			return nil, nil, err
		}
		if cov == res.Fit.CovType {
			return res.Model, res.Fit, nil
		}
		fit, err := res.Model.Fit(mean.WithCovariance(cov))
		return res.Model, fit, err
	}

	model, err := newModel(cfg, y, x, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("fitting", zap.Stringer("model", model))
	fit, err := model.Fit(mean.WithCovariance(cov))
	if err != nil {
		return nil, nil, err
	}
	if !fit.Converged {
		logger.Warn("optimizer did not converge", zap.String("message", fit.Message))
	}
	return model, fit, nil
}

func newModel(cfg *config.Config, y *timeseries.Series, x *timeseries.Frame, logger *zap.Logger) (*mean.Model, error) {
	vol, err := cfg.NewVolatility()
	if err != nil {
		return nil, err
	}
	dist, err := cfg.NewDistribution()
	if err != nil {
		return nil, err
	}
	opts := []mean.Option{
		mean.WithVolatility(vol),
		mean.WithDistribution(dist),
		mean.WithSeed(cfg.Forecast.Seed),
		mean.WithLogger(logger),
	}

	switch strings.ToLower(cfg.Model.Mean) {
	case "zero":
		return mean.NewZeroMean(y, opts...)
	case "constant", "":
		return mean.NewConstantMean(y, opts...)
	case "arx", "ar":
		return mean.NewARX(y, x, cfg.Model.Lags, opts...)
	case "harx", "har":
		return mean.NewHARX(y, x, cfg.Model.Lags, opts...)
	case "ls":
		return mean.NewLS(y, x, opts...)
	}
	return nil, archerr.Configuration("unknown mean model %q", cfg.Model.Mean)
}

// futureX supplies one row per origin from start to the end of the sample.
// Each row holds the observed regressor values after its origin and repeats
// the last observation once the sample runs out.
func futureX(x *timeseries.Frame, start, h int) mean.FutureX {
	n := x.Len()
	values := make([][][]float64, x.Width())
	for j, col := range x.Columns {
		rows := make([][]float64, n-start)
		for r := range rows {
			rows[r] = make([]float64, h)
			for k := range rows[r] {
				rows[r][k] = col[min(start+r+1+k, n-1)]
			}
		}
		values[j] = rows
	}
	return mean.XArray(values)
}

// rollingForecasts refits on every rolling window and forecasts one step
// past the end of each.
func rollingForecasts(ctx context.Context, cfg *config.Config, model *mean.Model, x *timeseries.Frame, logger *zap.Logger) (tabular.Table, error) {
	cov, err := cfg.CovarianceType()
	if err != nil {
		return tabular.Table{}, err
	}
	windows := mean.RollingWindows(model.NumObs(), cfg.Estimation.RollingWindow, cfg.Estimation.RollingStep)
	if len(windows) == 0 {
		return tabular.Table{}, archerr.InsufficientHistory("rolling window %d is longer than the %d observations", cfg.Estimation.RollingWindow, model.NumObs())
	}
	logger.Info("rolling refit", zap.Int("windows", len(windows)), zap.Int("workers", cfg.Estimation.Workers))

	fits, err := model.FitRolling(ctx, windows, cfg.Estimation.Workers, mean.WithCovariance(cov))
	if err != nil {
		return tabular.Table{}, err
	}

	table := tabular.Table{
		Name:   "rolling",
		Header: []string{"first", "last", "converged", "loglikelihood", "mean", "variance"},
	}
	for _, fit := range fits {
		origin := fit.LastObs - 1
		opts := []mean.ForecastOption{mean.WithStart(origin), mean.WithForecastSeed(cfg.Forecast.Seed)}
		if x != nil {
			opts = append(opts, mean.WithFutureX(futureX(x, origin, 1)))
		}
		fc, err := fit.Forecast(opts...)
		if err != nil {
			return tabular.Table{}, err
		}
		converged := 0
		if fit.Converged {
			converged = 1
		}
		table.Rows = append(table.Rows, []any{
			fit.Window.First, fit.Window.Last, converged, fit.LogLikelihood, fc.Mean[0][0], fc.Variance[0][0],
		})
	}
	return table, nil
}

func logSummary(logger *zap.Logger, s *mean.Summary) {
	logger.Info("fit",
		zap.String("mean", s.Mean),
		zap.String("volatility", s.Volatility),
		zap.String("distribution", s.Distribution),
		zap.Int("n_obs", s.NumObs),
		zap.Float64("loglikelihood", s.LogLikelihood),
		zap.Float64("aic", s.AIC),
		zap.Float64("bic", s.BIC),
		zap.Bool("converged", s.Converged))
	for _, p := range s.Params {
		logger.Info("parameter",
			zap.String("name", p.Name),
			zap.Float64("estimate", p.Value),
			zap.Float64("std_error", p.StdError),
			zap.Float64("p_value", p.PValue))
	}
	if s.LjungBox != nil && s.LjungBoxSquared != nil && s.ARCHLM != nil {
		logger.Info("diagnostics",
			zap.Float64("ljung_box_p", s.LjungBox.PValue),
			zap.Float64("ljung_box_sq_p", s.LjungBoxSquared.PValue),
			zap.Float64("arch_lm_p", s.ARCHLM.PValue))
	}
}
