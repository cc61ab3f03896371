package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sartorproj/goarch/archerr"
)

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string   // Column name for dates (optional)
	ValueColumn string   // Column name for the target (default: "y")
	Regressors  []string // Columns loaded into the regressor frame
	IDColumn    string   // Column name for series ID (optional, for filtering)
	IDFilter    string   // Value to filter by ID column
	DateFormat  string   // Date format (default: "2006-01-02")
	HasHeader   bool     // Whether CSV has header row (default: true)
	Delimiter   rune     // Field delimiter (default: ',')
	SkipRows    int      // Number of rows to skip at start
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		ValueColumn: "y",
		DateFormat:  "2006-01-02",
		HasHeader:   true,
		Delimiter:   ',',
	}
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

// LoadCSV loads a target series and its regressors from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, *Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, archerr.Wrapf(archerr.ErrConfiguration, "open %s: %v", filename, err)
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a target series and its regressors from an
// io.Reader. A row whose target or any regressor is missing is dropped
// as a whole so the frame stays aligned with the series. The frame is nil
// when no regressors are requested.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, *Frame, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ','
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return loadRecords(reader, opts)
}

// LoadRecords loads a target series and its regressors from rows that were
// already split into fields, such as the rows of a spreadsheet. It applies
// the same rules as LoadCSVFromReader.
func LoadRecords(records [][]string, opts *CSVOptions) (*Series, *Frame, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}
	return loadRecords(&sliceReader{records: records}, opts)
}

type recordReader interface {
	Read() ([]string, error)
}

type sliceReader struct {
	records [][]string
	next    int
}

// Read returns the next record, or io.EOF after the last.
func (r *sliceReader) Read() ([]string, error) {
	if r.next >= len(r.records) {
		return nil, io.EOF
	}
	r.next++
	return r.records[r.next-1], nil
}

func loadRecords(reader recordReader, opts *CSVOptions) (*Series, *Frame, error) {
	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, nil, archerr.Wrapf(archerr.ErrConfiguration, "skip row %d: %v", i, err)
		}
	}

	valueIdx, dateIdx, idIdx := -1, -1, -1
	regIdx := make([]int, len(opts.Regressors))

	if opts.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, nil, archerr.Wrapf(archerr.ErrConfiguration, "read header: %v", err)
		}
		index := make(map[string]int, len(header))
		for i, h := range header {
			index[strings.TrimSpace(strings.Trim(h, "\""))] = i
		}
		lookup := func(names ...string) int {
			for _, n := range names {
				if i, ok := index[n]; ok && n != "" {
					return i
				}
			}
			return -1
		}

		valueIdx = lookup(opts.ValueColumn)
		if valueIdx == -1 && opts.ValueColumn == "" {
			valueIdx = lookup("y", "value", "Value")
		}
		if valueIdx == -1 {
			return nil, nil, archerr.Configuration("target column %q not found", opts.ValueColumn)
		}
		dateIdx = lookup(opts.DateColumn, "ds", "date", "Date")
		idIdx = lookup(opts.IDColumn)
		for j, name := range opts.Regressors {
			regIdx[j] = lookup(name)
			if regIdx[j] == -1 {
				return nil, nil, archerr.Configuration("regressor column %q not found", name)
			}
		}
	} else {
		if len(opts.Regressors) > 0 {
			return nil, nil, archerr.Configuration("regressors need a header row")
		}
		// date, value
		dateIdx, valueIdx = 0, 1
	}

	var (
		values     []float64
		timestamps []time.Time
		columns    = make([][]float64, len(opts.Regressors))
		row        = make([]float64, len(opts.Regressors))
		datesOK    = dateIdx >= 0
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, archerr.Wrapf(archerr.ErrConfiguration, "read row: %v", err)
		}

		if opts.IDFilter != "" && idIdx >= 0 && idIdx < len(record) {
			if field(record, idIdx) != opts.IDFilter {
				continue
			}
		}

		val, ok := parseValue(record, valueIdx)
		if !ok {
			continue
		}
		complete := true
		for j, idx := range regIdx {
			if row[j], ok = parseValue(record, idx); !ok {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}

		values = append(values, val)
		for j := range columns {
			columns[j] = append(columns[j], row[j])
		}
		if datesOK {
			ts, ok := parseDate(field(record, dateIdx), opts.DateFormat)
			if ok {
				timestamps = append(timestamps, ts)
			} else {
				datesOK = false
			}
		}
	}

	if len(values) == 0 {
		return nil, nil, archerr.Configuration("no valid data found in CSV")
	}

	series := &Series{Values: values, Name: opts.ValueColumn}
	if datesOK && len(timestamps) == len(values) {
		series.Timestamps = timestamps
	}

	if len(opts.Regressors) == 0 {
		return series, nil, nil
	}
	frame, err := NewFrame(append([]string(nil), opts.Regressors...), columns)
	if err != nil {
		return nil, nil, err
	}
	return series, frame, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(record[idx], "\""))
}

func parseValue(record []string, idx int) (float64, bool) {
	s := field(record, idx)
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseDate(s, preferred string) (time.Time, bool) {
	if preferred != "" {
		if ts, err := time.Parse(preferred, s); err == nil {
			return ts, true
		}
	}
	for _, f := range dateFormats {
		if ts, err := time.Parse(f, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// LoadCSVColumn loads a specific column from a CSV file as a series.
func LoadCSVColumn(filename string, column string) (*Series, error) {
	opts := DefaultCSVOptions()
	opts.ValueColumn = column
	series, _, err := LoadCSV(filename, opts)
	return series, err
}

// SaveCSV saves a series to a CSV file.
func SaveCSV(series *Series, filename string, includeIndex bool) error {
	file, err := os.Create(filename)
	if err != nil {
		return archerr.Wrapf(archerr.ErrConfiguration, "create %s: %v", filename, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteCSV(writer, series, includeIndex); err != nil {
		return err
	}
	return writer.Flush()
}

// WriteCSV writes a series as CSV.
func WriteCSV(w io.Writer, series *Series, includeIndex bool) error {
	cw := csv.NewWriter(w)
	dated := series.HasTimestamps()

	name := series.Name
	if name == "" {
		name = "y"
	}
	header := []string{name}
	if includeIndex {
		if dated {
			header = []string{"ds", name}
		} else {
			header = []string{"index", name}
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, v := range series.Values {
		rec := []string{strconv.FormatFloat(v, 'f', -1, 64)}
		if includeIndex {
			idx := strconv.Itoa(i + 1)
			if dated {
				idx = series.Timestamps[i].Format("2006-01-02")
			}
			rec = append([]string{idx}, rec...)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
