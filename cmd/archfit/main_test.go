package main

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/internal/config"
	"github.com/sartorproj/goarch/mean"
	"github.com/sartorproj/goarch/timeseries"
)

func writePrices(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(5, 6))
	var b strings.Builder
	b.WriteString("price,vix\n")
	price := 100.0
	for i := 0; i < n; i++ {
		price *= math.Exp(0.01 * rng.NormFloat64())
		b.WriteString(strconv.FormatFloat(price, 'f', 6, 64))
		b.WriteString(",")
		b.WriteString(strconv.Itoa(10 + i%7))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(path string) *config.Config {
	cfg := config.Default()
	cfg.Data.Path = path
	cfg.Data.Column = "price"
	cfg.Data.Returns = "log"
	return cfg
}

func TestLoadDataReturns(t *testing.T) {
	cfg := testConfig(writePrices(t, 50))
	cfg.Data.Regressors = []string{"vix"}

	y, x, err := loadData(cfg)
	require.NoError(t, err)
	assert.Equal(t, 49, y.Len())
	require.NotNil(t, x)
	assert.Equal(t, 49, x.Len())
	// Row 0 of the returns pairs with the second price row.
	assert.Equal(t, 11.0, x.Column("vix")[0])
}

func TestFutureX(t *testing.T) {
	x, err := timeseries.NewFrame([]string{"a"}, [][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)

	fx := futureX(x, 1, 2)
	assert.Equal(t, mean.XArray([][][]float64{{{3, 4}, {4, 4}, {4, 4}}}), fx)

	fx = futureX(x, 3, 3)
	assert.Equal(t, mean.XArray([][][]float64{{{4, 4, 4}}}), fx)
}

func TestNewModel(t *testing.T) {
	y := timeseries.New(make([]float64, 100))
	cfg := config.Default()

	for _, kind := range []string{"zero", "constant", "arx", "harx"} {
		cfg.Model.Mean = kind
		m, err := newModel(cfg, y, nil, zap.NewNop())
		require.NoError(t, err, kind)
		assert.NotNil(t, m)
	}

	cfg.Model.Mean = "var"
	_, err := newModel(cfg, y, nil, zap.NewNop())
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("fits several models")
	}
	cfg := testConfig(writePrices(t, 400))
	cfg.Model.Mean = "arx"
	cfg.Data.Regressors = []string{"vix"}
	cfg.Forecast.Horizon = 3
	cfg.Estimation.RollingWindow = 300
	cfg.Estimation.RollingStep = 50
	cfg.Output.Path = filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, cfg.Validate())

	require.NoError(t, runFit(context.Background(), cfg, zap.NewNop()))

	out, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 1+3)
	assert.True(t, strings.HasPrefix(lines[0], "origin,step,mean"))

	rolling, err := os.ReadFile(filepath.Join(filepath.Dir(cfg.Output.Path), "out_rolling.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(rolling)), "\n"), 1+2)
}

func TestTestCommand(t *testing.T) {
	cfg := testConfig(writePrices(t, 300))
	cfg.Log.Level = "error"
	out := filepath.Join(t.TempDir(), "tests.csv")

	root := newRootCmd(&app{cfg: cfg, logger: zap.NewNop()})
	root.SetArgs([]string{"test", "--output", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Augmented Dickey-Fuller")
	assert.Contains(t, text, "KPSS")
	assert.Contains(t, text, "ARCH-LM")
}

func TestSimulateCommand(t *testing.T) {
	cfg := testConfig(writePrices(t, 300))
	cfg.Log.Level = "error"
	out := filepath.Join(t.TempDir(), "sim.csv")

	root := newRootCmd(&app{cfg: cfg, logger: zap.NewNop()})
	root.SetArgs([]string{"simulate", "--n", "150", "--burn", "50", "--output", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1+150)
	assert.Equal(t, "t,y,variance,error", lines[0])
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&app{cfg: cfg, logger: zap.NewNop()})
	root.SetArgs([]string{"fit"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}
