// Package tabular moves series in and out of CSV and XLSX files. The file
// extension selects the format.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/mean"
	"github.com/sartorproj/goarch/timeseries"
)

// Table is a named block of rows. Cells hold string, int or float64 values.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

func isXLSX(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xlsx" || ext == ".xlsm"
}

// Load reads the target series and regressors from a CSV file or from the
// first sheet of an XLSX workbook.
func Load(path string, opts *timeseries.CSVOptions) (*timeseries.Series, *timeseries.Frame, error) {
	if !isXLSX(path) {
		return timeseries.LoadCSV(path, opts)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, archerr.Wrapf(archerr.ErrConfiguration, "open %s: %v", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, archerr.Configuration("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, archerr.Wrapf(archerr.ErrConfiguration, "read %s: %v", sheets[0], err)
	}
	return timeseries.LoadRecords(rows, opts)
}

// ForecastTable lays out fc one row per origin and step. Quantile columns
// are added for every level in quantiles.
func ForecastTable(fc *mean.Forecast, quantiles ...float64) (Table, error) {
	header := []string{"origin"}
	if fc.Timestamps != nil {
		header = append(header, "date")
	}
	header = append(header, "step", "mean", "residual_variance", "variance")

	qs := make([][][]float64, len(quantiles))
	for i, p := range quantiles {
		q, err := fc.Quantile(p)
		if err != nil {
			return Table{}, err
		}
		qs[i] = q
		header = append(header, "q"+strconv.FormatFloat(math.Round(1e6*100*p)/1e6, 'f', -1, 64))
	}

	t := Table{Name: "forecast", Header: header}
	for i, origin := range fc.Origins {
		for h := 0; h < fc.Horizon; h++ {
			row := []any{origin}
			if fc.Timestamps != nil {
				row = append(row, fc.Timestamps[i].Format(time.DateOnly))
			}
			row = append(row, h+1, fc.Mean[i][h], fc.ResidualVariance[i][h], fc.Variance[i][h])
			for _, q := range qs {
				row = append(row, q[i][h])
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// ParamsTable lists the estimates of a fit with their inference.
func ParamsTable(fit *mean.FitResult) Table {
	s := fit.Summary()
	t := Table{
		Name:   "parameters",
		Header: []string{"parameter", "estimate", "std_error", "t_stat", "p_value"},
	}
	for _, p := range s.Params {
		t.Rows = append(t.Rows, []any{p.Name, p.Value, p.StdError, p.TStat, p.PValue})
	}
	t.Rows = append(t.Rows,
		[]any{"loglikelihood", s.LogLikelihood, math.NaN(), math.NaN(), math.NaN()},
		[]any{"aic", s.AIC, math.NaN(), math.NaN(), math.NaN()},
		[]any{"bic", s.BIC, math.NaN(), math.NaN(), math.NaN()},
	)
	return t
}

// Write stores tables at path. An XLSX workbook gets one sheet per table.
// For CSV the first table goes to path and each further table to
// <path>_<name>.csv.
func Write(path string, tables ...Table) error {
	if len(tables) == 0 {
		return archerr.Configuration("nothing to write to %s", path)
	}
	if isXLSX(path) {
		return writeXLSX(path, tables)
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for i, t := range tables {
		name := path
		if i > 0 {
			name = base + "_" + t.Name + ".csv"
		}
		if err := writeCSVFile(name, t); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVFile(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, t); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes t with a header row. NaN cells are left empty.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = format(row[j])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func format(v any) string {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func writeXLSX(path string, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		sheet := t.Name
		if i == 0 {
			// Rename the default sheet so no empty Sheet1 is left behind.
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		for c, h := range t.Header {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return err
			}
		}
		for r, row := range t.Rows {
			for c, v := range row {
				if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
		}
	}
	f.SetActiveSheet(0)
	return f.SaveAs(path)
}
