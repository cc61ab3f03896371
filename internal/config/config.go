// Package config loads archfit settings from the environment and flags.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/estimate"
	"github.com/sartorproj/goarch/timeseries"
	"github.com/sartorproj/goarch/volatility"
)

// Config is the complete archfit configuration.
type Config struct {
	Data       DataConfig
	Model      ModelConfig
	Forecast   ForecastConfig
	Estimation EstimationConfig
	Output     OutputConfig
	Log        LogConfig
}

// DataConfig describes the input file.
type DataConfig struct {
	Path       string
	Column     string
	DateColumn string
	Regressors []string
	Returns    string // none, log or pct
}

// ModelConfig describes the model family and orders.
type ModelConfig struct {
	Mean         string // zero, constant, arx, harx or ls
	Lags         []int
	Volatility   string // constant, garch, egarch, harch or ewma
	P            int
	O            int
	Q            int
	Power        float64
	Distribution string // normal, t, skewt or ged
	Auto         bool   // search orders by information criterion
	Criterion    string // aic or bic
}

// ForecastConfig describes the forecast.
type ForecastConfig struct {
	Horizon     int
	Method      string // analytic, simulation or bootstrap
	Simulations int
	Seed        uint64
}

// EstimationConfig describes estimation and refitting.
type EstimationConfig struct {
	Covariance    string // classic or robust
	RollingWindow int
	RollingStep   int
	Workers       int
}

// OutputConfig names the export file. The extension selects CSV or XLSX.
type OutputConfig struct {
	Path string
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string
	Format string // console or json
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Column:  "y",
			Returns: "none",
		},
		Model: ModelConfig{
			Mean:         "constant",
			Lags:         []int{1},
			Volatility:   "garch",
			P:            1,
			Q:            1,
			Power:        2,
			Distribution: "normal",
			Criterion:    "bic",
		},
		Forecast: ForecastConfig{
			Horizon:     10,
			Method:      "analytic",
			Simulations: 1000,
			Seed:        1,
		},
		Estimation: EstimationConfig{
			Covariance:  "robust",
			RollingStep: 1,
			Workers:     4,
		},
		Output: OutputConfig{
			Path: "forecast.csv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads ARCH_* environment variables over the defaults and validates
// the result.
func Load() (*Config, error) {
	d := Default()
	cfg := &Config{
		Data: DataConfig{
			Path:       getEnvOrDefault("ARCH_DATA", d.Data.Path),
			Column:     getEnvOrDefault("ARCH_COLUMN", d.Data.Column),
			DateColumn: getEnvOrDefault("ARCH_DATE_COLUMN", d.Data.DateColumn),
			Regressors: splitList(getEnvOrDefault("ARCH_REGRESSORS", "")),
			Returns:    getEnvOrDefault("ARCH_RETURNS", d.Data.Returns),
		},
		Model: ModelConfig{
			Mean:         getEnvOrDefault("ARCH_MEAN", d.Model.Mean),
			Lags:         d.Model.Lags,
			Volatility:   getEnvOrDefault("ARCH_VOL", d.Model.Volatility),
			P:            getEnvIntOrDefault("ARCH_P", d.Model.P),
			O:            getEnvIntOrDefault("ARCH_O", d.Model.O),
			Q:            getEnvIntOrDefault("ARCH_Q", d.Model.Q),
			Power:        getEnvFloatOrDefault("ARCH_POWER", d.Model.Power),
			Distribution: getEnvOrDefault("ARCH_DIST", d.Model.Distribution),
			Auto:         getEnvBoolOrDefault("ARCH_AUTO", d.Model.Auto),
			Criterion:    getEnvOrDefault("ARCH_CRITERION", d.Model.Criterion),
		},
		Forecast: ForecastConfig{
			Horizon:     getEnvIntOrDefault("ARCH_HORIZON", d.Forecast.Horizon),
			Method:      getEnvOrDefault("ARCH_METHOD", d.Forecast.Method),
			Simulations: getEnvIntOrDefault("ARCH_SIMULATIONS", d.Forecast.Simulations),
			Seed:        uint64(getEnvIntOrDefault("ARCH_SEED", int(d.Forecast.Seed))),
		},
		Estimation: EstimationConfig{
			Covariance:    getEnvOrDefault("ARCH_COV", d.Estimation.Covariance),
			RollingWindow: getEnvIntOrDefault("ARCH_ROLLING_WINDOW", d.Estimation.RollingWindow),
			RollingStep:   getEnvIntOrDefault("ARCH_ROLLING_STEP", d.Estimation.RollingStep),
			Workers:       getEnvIntOrDefault("ARCH_WORKERS", d.Estimation.Workers),
		},
		Output: OutputConfig{
			Path: getEnvOrDefault("ARCH_OUTPUT", d.Output.Path),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("ARCH_LOG_LEVEL", d.Log.Level),
			Format: getEnvOrDefault("ARCH_LOG_FORMAT", d.Log.Format),
		},
	}
	if lags := os.Getenv("ARCH_LAGS"); lags != "" {
		parsed, err := parseInts(lags)
		if err != nil {
			return nil, archerr.Wrap(err, "ARCH_LAGS")
		}
		cfg.Model.Lags = parsed
	}
	return cfg, nil
}

// BindFlags registers a flag for every setting on fs. Current values of
// cfg become the flag defaults, so flags override the environment.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Data.Path, "data", cfg.Data.Path, "CSV or XLSX file with the series")
	fs.StringVar(&cfg.Data.Column, "column", cfg.Data.Column, "target column")
	fs.StringVar(&cfg.Data.DateColumn, "date-column", cfg.Data.DateColumn, "date column")
	fs.StringSliceVar(&cfg.Data.Regressors, "regressors", cfg.Data.Regressors, "regressor columns")
	fs.StringVar(&cfg.Data.Returns, "returns", cfg.Data.Returns, "convert prices to returns: none, log or pct")

	fs.StringVar(&cfg.Model.Mean, "mean", cfg.Model.Mean, "mean model: zero, constant, arx, harx or ls")
	fs.IntSliceVar(&cfg.Model.Lags, "lags", cfg.Model.Lags, "lags for arx, harx and harch")
	fs.StringVar(&cfg.Model.Volatility, "vol", cfg.Model.Volatility, "volatility: constant, garch, egarch, harch or ewma")
	fs.IntVar(&cfg.Model.P, "p", cfg.Model.P, "symmetric innovation order")
	fs.IntVar(&cfg.Model.O, "o", cfg.Model.O, "asymmetric innovation order")
	fs.IntVar(&cfg.Model.Q, "q", cfg.Model.Q, "lagged variance order")
	fs.Float64Var(&cfg.Model.Power, "power", cfg.Model.Power, "power of the garch recursion")
	fs.StringVar(&cfg.Model.Distribution, "dist", cfg.Model.Distribution, "distribution: normal, t, skewt or ged")
	fs.BoolVar(&cfg.Model.Auto, "auto", cfg.Model.Auto, "search lag and garch orders")
	fs.StringVar(&cfg.Model.Criterion, "criterion", cfg.Model.Criterion, "order search criterion: aic or bic")

	fs.IntVar(&cfg.Forecast.Horizon, "horizon", cfg.Forecast.Horizon, "forecast horizon")
	fs.StringVar(&cfg.Forecast.Method, "method", cfg.Forecast.Method, "forecast method: analytic, simulation or bootstrap")
	fs.IntVar(&cfg.Forecast.Simulations, "simulations", cfg.Forecast.Simulations, "paths per origin")
	fs.Uint64Var(&cfg.Forecast.Seed, "seed", cfg.Forecast.Seed, "random seed")

	fs.StringVar(&cfg.Estimation.Covariance, "cov", cfg.Estimation.Covariance, "covariance: classic or robust")
	fs.IntVar(&cfg.Estimation.RollingWindow, "rolling-window", cfg.Estimation.RollingWindow, "refit on rolling windows of this size (0 disables)")
	fs.IntVar(&cfg.Estimation.RollingStep, "rolling-step", cfg.Estimation.RollingStep, "observations between rolling windows")
	fs.IntVar(&cfg.Estimation.Workers, "workers", cfg.Estimation.Workers, "parallel fits")

	fs.StringVar(&cfg.Output.Path, "output", cfg.Output.Path, "forecast file (.csv or .xlsx)")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "console or json")
}

// Validate checks the settings that are not validated by the factories.
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return archerr.Configuration("ARCH_DATA or --data is required")
	}
	if c.Forecast.Horizon < 1 {
		return archerr.Configuration("horizon must be at least 1, got %d", c.Forecast.Horizon)
	}
	if c.Forecast.Simulations < 1 {
		return archerr.Configuration("simulations must be positive, got %d", c.Forecast.Simulations)
	}
	if c.Estimation.RollingWindow < 0 || c.Estimation.RollingStep < 1 {
		return archerr.Configuration("rolling window %d with step %d", c.Estimation.RollingWindow, c.Estimation.RollingStep)
	}
	switch strings.ToLower(c.Model.Criterion) {
	case "aic", "bic":
	default:
		return archerr.Configuration("unknown criterion %q", c.Model.Criterion)
	}
	if _, err := c.ReturnKind(); err != nil {
		return err
	}
	if _, err := c.Method(); err != nil {
		return err
	}
	if _, err := c.CovarianceType(); err != nil {
		return err
	}
	if _, err := c.NewVolatility(); err != nil {
		return err
	}
	_, err := c.NewDistribution()
	return err
}

// ReturnKind parses Data.Returns.
func (c *Config) ReturnKind() (timeseries.ReturnKind, error) {
	return timeseries.ParseReturnKind(c.Data.Returns)
}

// Method parses Forecast.Method.
func (c *Config) Method() (volatility.Method, error) {
	return volatility.ParseMethod(c.Forecast.Method)
}

// CovarianceType parses Estimation.Covariance.
func (c *Config) CovarianceType() (estimate.CovarianceType, error) {
	switch strings.ToLower(c.Estimation.Covariance) {
	case "classic", "":
		return estimate.Classic, nil
	case "robust":
		return estimate.Robust, nil
	}
	return estimate.Classic, archerr.Configuration("unknown covariance %q", c.Estimation.Covariance)
}

// NewVolatility builds the configured volatility process.
func (c *Config) NewVolatility() (volatility.Process, error) {
	m := c.Model
	switch strings.ToLower(m.Volatility) {
	case "constant":
		return volatility.NewConstantVariance(), nil
	case "garch", "":
		return volatility.NewGARCH(m.P, m.O, m.Q, m.Power)
	case "egarch":
		return volatility.NewEGARCH(m.P, m.O, m.Q)
	case "harch":
		return volatility.NewHARCH(m.Lags...)
	case "ewma", "riskmetrics":
		return volatility.NewRiskMetrics(), nil
	}
	return nil, archerr.Configuration("unknown volatility %q", m.Volatility)
}

// NewDistribution builds the configured distribution.
func (c *Config) NewDistribution() (distribution.Distribution, error) {
	return distribution.New(distribution.Kind(strings.ToLower(c.Model.Distribution)))
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, archerr.Configuration("%q is not an integer", part)
		}
		out = append(out, v)
	}
	return out, nil
}
