package timeseries

import (
	"math"

	"github.com/sartorproj/goarch/archerr"
)

// Frame holds named regressor columns of equal length. Row t of a Frame
// explains observation t of the target series.
type Frame struct {
	Names   []string
	Columns [][]float64
}

// NewFrame validates names and columns.
func NewFrame(names []string, columns [][]float64) (*Frame, error) {
	if len(names) != len(columns) {
		return nil, archerr.Configuration("%d names for %d columns", len(names), len(columns))
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if name == "" {
			return nil, archerr.Configuration("column %d has no name", i)
		}
		if seen[name] {
			return nil, archerr.Configuration("column %q is repeated", name)
		}
		seen[name] = true
		if len(columns[i]) != len(columns[0]) {
			return nil, archerr.Configuration("column %q has %d rows, want %d", name, len(columns[i]), len(columns[0]))
		}
	}
	return &Frame{Names: names, Columns: columns}, nil
}

// FrameFromRows builds a frame from a row-major table.
func FrameFromRows(names []string, rows [][]float64) (*Frame, error) {
	columns := make([][]float64, len(names))
	for j := range columns {
		columns[j] = make([]float64, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, archerr.Configuration("row %d has %d values, want %d", i, len(row), len(names))
		}
		for j, v := range row {
			columns[j][i] = v
		}
	}
	return NewFrame(names, columns)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return len(f.Columns[0])
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Column returns the named column or nil.
func (f *Frame) Column(name string) []float64 {
	for i, n := range f.Names {
		if n == name {
			return f.Columns[i]
		}
	}
	return nil
}

// Row returns a copy of row t.
func (f *Frame) Row(t int) []float64 {
	row := make([]float64, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = c[t]
	}
	return row
}

// Slice returns rows start to end (exclusive).
func (f *Frame) Slice(start, end int) *Frame {
	columns := make([][]float64, len(f.Columns))
	for j, c := range f.Columns {
		columns[j] = append([]float64(nil), c[start:end]...)
	}
	return &Frame{Names: append([]string(nil), f.Names...), Columns: columns}
}

// Validate returns a configuration error when any value is not finite.
func (f *Frame) Validate() error {
	for j, c := range f.Columns {
		for i, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return archerr.Configuration("regressor %q has a non-finite value at %d", f.Names[j], i)
			}
		}
	}
	return nil
}
