// Command archfit fits ARCH-family models to a series, forecasts them and
// writes the results.
//
// Settings come from ARCH_* environment variables, optionally loaded from a
// .env file, and are overridden by flags:
//
//	archfit fit --data spx.csv --column close --returns log --vol garch --o 1 --dist skewt --horizon 10 --output spx.xlsx
//	archfit test --data spx.csv --column close --returns log
//	archfit simulate --data spx.csv --column close --returns log --n 2500 --output sim.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sartorproj/goarch/internal/config"
	"github.com/sartorproj/goarch/internal/logging"
)

// app carries what every subcommand shares.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	ready  bool // logger built from cfg
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	a := &app{cfg: cfg, logger: zap.NewNop()}
	rootCmd := newRootCmd(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	if envErr != nil {
		a.logger.Debug("no .env file found, using system environment variables")
	}
	if err != nil {
		if a.ready {
			a.logger.Error("archfit failed", zap.Error(err))
			_ = a.logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, "archfit:", err)
		}
		os.Exit(1)
	}
	_ = a.logger.Sync()
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "archfit",
		Short:         "Fit, test and forecast ARCH-family volatility models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			logger, err := logging.New(a.cfg.Log.Level, a.cfg.Log.Format)
			if err != nil {
				return err
			}
			a.logger = logger.With(zap.String("command", cmd.Name()))
			a.ready = true
			return nil
		},
	}
	config.BindFlags(rootCmd.PersistentFlags(), a.cfg)

	rootCmd.AddCommand(
		newFitCmd(a),
		newTestCmd(a),
		newSimulateCmd(a),
	)
	return rootCmd
}
