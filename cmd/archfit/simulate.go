package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/internal/config"
	"github.com/sartorproj/goarch/internal/tabular"
	"github.com/sartorproj/goarch/mean"
)

func newSimulateCmd(a *app) *cobra.Command {
	var n, burn int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a series from the fitted model",
		Long: `Estimate the configured model on the data, then simulate --n observations
from the estimates. Models with regressors reuse the last --n plus --burn
observed regressor rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, a.cfg, a.logger, n, burn)
		},
	}
	cmd.Flags().IntVar(&n, "n", 1000, "observations to simulate")
	cmd.Flags().IntVar(&burn, "burn", 500, "observations discarded before the first kept one")
	return cmd
}

func runSimulate(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, n, burn int) error {
	if n < 1 || burn < 0 {
		return archerr.Configuration("simulate needs n >= 1 and burn >= 0, got %d and %d", n, burn)
	}
	y, x, err := loadData(cfg)
	if err != nil {
		return err
	}
	model, fit, err := fitModel(cmd.Context(), cfg, y, x, logger)
	if err != nil {
		return err
	}

	opts := []mean.SimOption{mean.WithBurn(burn), mean.WithSimulationSeed(cfg.Forecast.Seed)}
	if x != nil {
		if x.Len() < n+burn {
			return archerr.InsufficientHistory("%d regressor rows cannot cover %d simulated observations", x.Len(), n+burn)
		}
		opts = append(opts, mean.WithSimulationX(x.Slice(x.Len()-n-burn, x.Len())))
	}
	sim, err := model.Simulate(fit.Params, n, opts...)
	if err != nil {
		return err
	}

	table := tabular.Table{
		Name:   "simulation",
		Header: []string{"t", "y", "variance", "error"},
	}
	for i := range sim.Data {
		table.Rows = append(table.Rows, []any{i, sim.Data[i], sim.Variance[i], sim.Errors[i]})
	}
	if err := tabular.Write(cfg.Output.Path, table, tabular.ParamsTable(fit)); err != nil {
		return err
	}
	logger.Info("simulation written", zap.String("path", cfg.Output.Path), zap.Int("n", n))
	return nil
}
