package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sartorproj/goarch/internal/config"
	"github.com/sartorproj/goarch/internal/tabular"
	"github.com/sartorproj/goarch/mean"
	"github.com/sartorproj/goarch/stats"
	"github.com/sartorproj/goarch/timeseries"
)

func newTestCmd(a *app) *cobra.Command {
	var (
		trend string
		lags  int
	)
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit-root and ARCH effect tests on the series",
		Long: `Run the augmented Dickey-Fuller, Phillips-Perron and KPSS tests, the
Ljung-Box test on the series and its square, and Engle's ARCH-LM test.
A negative --test-lags picks the lag count from the sample size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := stats.ParseTrend(trend)
			if err != nil {
				return err
			}
			return runTests(a.cfg, a.logger, t, lags)
		},
	}
	cmd.Flags().StringVar(&trend, "trend", "c", "deterministic terms: n, c, ct or ctt")
	cmd.Flags().IntVar(&lags, "test-lags", -1, "lags of the unit-root tests")
	return cmd
}

func runTests(cfg *config.Config, logger *zap.Logger, trend stats.Trend, lags int) error {
	y, _, err := loadData(cfg)
	if err != nil {
		return err
	}

	table := tabular.Table{
		Name:   "tests",
		Header: []string{"test", "statistic", "p_value", "lags", "stationary"},
	}
	unitRoot := []func() (*stats.TestResult, error){
		func() (*stats.TestResult, error) { return stats.ADF(y, trend, lags) },
		func() (*stats.TestResult, error) { return stats.PhillipsPerron(y, trend, lags) },
		func() (*stats.TestResult, error) { return stats.KPSS(y, trend, lags) },
	}
	for _, test := range unitRoot {
		res, err := test()
		if err != nil {
			// KPSS has no ctt or n variant; the other tests still run.
			logger.Warn("test skipped", zap.Error(err))
			continue
		}
		logger.Info(res.Name,
			zap.Float64("statistic", res.Statistic),
			zap.Float64("p_value", res.PValue),
			zap.Int("lags", res.Lags),
			zap.Bool("stationary", res.Stationary))
		table.Rows = append(table.Rows, []any{res.Name, res.Statistic, res.PValue, res.Lags, boolString(res.Stationary)})
	}

	sq := make([]float64, y.Len())
	centered := make([]float64, y.Len())
	mu := y.Mean()
	for i, v := range y.Values {
		centered[i] = v - mu
		sq[i] = centered[i] * centered[i]
	}
	lb := stats.LjungBox(y, mean.SummaryLags, 0)
	lbSq := stats.LjungBox(timeseries.New(sq), mean.SummaryLags, 0)
	lm := stats.ARCHLM(timeseries.New(centered), mean.SummaryLags)
	if lb != nil {
		table.Rows = append(table.Rows, []any{"Ljung-Box", lb.Statistic, lb.PValue, lb.Lags, ""})
	}
	if lbSq != nil {
		table.Rows = append(table.Rows, []any{"Ljung-Box squared", lbSq.Statistic, lbSq.PValue, lbSq.Lags, ""})
	}
	if lm != nil {
		logger.Info("ARCH-LM", zap.Float64("statistic", lm.Statistic), zap.Float64("p_value", lm.PValue))
		table.Rows = append(table.Rows, []any{"ARCH-LM", lm.Statistic, lm.PValue, lm.Lags, ""})
	}

	if err := tabular.Write(cfg.Output.Path, table); err != nil {
		return err
	}
	logger.Info("tests written", zap.String("path", cfg.Output.Path), zap.Int("tests", len(table.Rows)))
	return nil
}

func boolString(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
