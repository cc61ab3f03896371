package tabular

import (
	"bytes"
	"encoding/csv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sartorproj/goarch/mean"
	"github.com/sartorproj/goarch/timeseries"
)

func fittedForecast(t *testing.T) (*mean.FitResult, *mean.Forecast) {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 4))
	values := make([]float64, 200)
	stamps := make([]time.Time, len(values))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range values {
		values[i] = 0.5 + rng.NormFloat64()
		stamps[i] = start.AddDate(0, 0, i)
	}
	y, err := timeseries.NewWithTimestamps(stamps, values)
	require.NoError(t, err)

	m, err := mean.NewConstantMean(y)
	require.NoError(t, err)
	fit, err := m.Fit()
	require.NoError(t, err)
	fc, err := fit.Forecast(mean.WithHorizon(3), mean.WithStart(197))
	require.NoError(t, err)
	return fit, fc
}

func TestForecastTable(t *testing.T) {
	_, fc := fittedForecast(t)

	table, err := ForecastTable(fc, 0.05, 0.95)
	require.NoError(t, err)

	assert.Equal(t, []string{"origin", "date", "step", "mean", "residual_variance", "variance", "q5", "q95"}, table.Header)
	require.Len(t, table.Rows, 3*3)
	assert.Equal(t, 197, table.Rows[0][0])
	assert.Equal(t, "2024-07-16", table.Rows[0][1])
	assert.Equal(t, 3, table.Rows[2][2])
	assert.Equal(t, 199, table.Rows[8][0])
	assert.Less(t, table.Rows[0][6].(float64), table.Rows[0][3].(float64))
	assert.Greater(t, table.Rows[0][7].(float64), table.Rows[0][3].(float64))
}

func TestWriteCSV(t *testing.T) {
	table := Table{
		Name:   "demo",
		Header: []string{"a", "b", "c"},
		Rows:   [][]any{{1, 2.5, "x"}, {2, math.NaN()}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2.5", "x"}, {"2", "", ""}}, records)
}

func TestWriteFiles(t *testing.T) {
	fit, fc := fittedForecast(t)
	forecast, err := ForecastTable(fc)
	require.NoError(t, err)
	params := ParamsTable(fit)
	assert.Equal(t, "const", params.Rows[0][0])

	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, Write(csvPath, forecast, params))
	_, err = os.Stat(filepath.Join(dir, "out_parameters.csv"))
	require.NoError(t, err)

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, Write(xlsxPath, forecast, params))

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"forecast", "parameters"}, f.GetSheetList())
	rows, err := f.GetRows("forecast")
	require.NoError(t, err)
	assert.Len(t, rows, 1+len(forecast.Rows))
	assert.Equal(t, "origin", rows[0][0])
}

func TestWriteNothing(t *testing.T) {
	assert.Error(t, Write(filepath.Join(t.TempDir(), "x.csv")))
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"date", "ret", "vix"},
		{"2024-01-02", 0.5, 13.1},
		{"2024-01-03", -0.2, 13.9},
		{"2024-01-04", 1.1, 12.7},
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	opts := timeseries.DefaultCSVOptions()
	opts.ValueColumn = "ret"
	opts.DateColumn = "date"
	opts.Regressors = []string{"vix"}

	y, x, err := Load(path, opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.2, 1.1}, y.Values)
	assert.Equal(t, []float64{13.1, 13.9, 12.7}, x.Column("vix"))
	assert.True(t, y.HasTimestamps())
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("ds,y\n2024-01-02,1\n2024-01-03,2\n"), 0o644))

	y, x, err := Load(path, nil)
	require.NoError(t, err)
	assert.Nil(t, x)
	assert.Equal(t, []float64{1, 2}, y.Values)
}
