package timeseries

import (
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goarch/archerr"
)

// Series represents observations with optional timestamps. Timestamps are
// used for alignment and labeling only.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New creates a series from values without timestamps.
func New(values []float64) *Series {
	return &Series{Values: values}
}

// NewWithTimestamps creates a series with explicit timestamps.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, archerr.Configuration("%d timestamps for %d values", len(timestamps), len(values))
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	return len(s.Values)
}

// HasTimestamps reports whether every value carries a timestamp.
func (s *Series) HasTimestamps() bool {
	return len(s.Timestamps) == len(s.Values) && len(s.Values) > 0
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return stat.Mean(s.Values, nil)
}

// Variance calculates the sample variance of the series.
func (s *Series) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	return stat.Variance(s.Values, nil)
}

// Std calculates the standard deviation of the series.
func (s *Series) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Validate returns a configuration error for empty or non-finite series.
func (s *Series) Validate() error {
	if s == nil || len(s.Values) == 0 {
		return archerr.Configuration("series is empty")
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return archerr.Configuration("series %q has a non-finite value at %d", s.Name, i)
		}
	}
	return nil
}

// Slice returns observations start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	start = max(start, 0)
	end = min(end, len(s.Values))
	if start >= end {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	var timestamps []time.Time
	if s.HasTimestamps() {
		timestamps = make([]time.Time, len(values))
		copy(timestamps, s.Timestamps[start:end])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	return s.Slice(0, len(s.Values))
}

// ReturnKind selects how prices are turned into returns.
type ReturnKind int

const (
	// Levels leaves the values unchanged.
	Levels ReturnKind = iota
	// LogReturns are 100·ln(p_t / p_{t-1}).
	LogReturns
	// PercentReturns are 100·(p_t / p_{t-1} - 1).
	PercentReturns
)

// ParseReturnKind accepts none, log and pct.
func ParseReturnKind(s string) (ReturnKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "levels":
		return Levels, nil
	case "log":
		return LogReturns, nil
	case "pct", "percent":
		return PercentReturns, nil
	}
	return Levels, archerr.Configuration("unknown return kind %q", s)
}

// Returns converts a price series to returns scaled by 100. The result is
// one observation shorter and keeps the timestamps of the later price.
func (s *Series) Returns(kind ReturnKind) (*Series, error) {
	if kind == Levels {
		return s.Copy(), nil
	}
	if len(s.Values) < 2 {
		return nil, archerr.Configuration("returns need at least two prices")
	}

	result := make([]float64, len(s.Values)-1)
	for i := 1; i < len(s.Values); i++ {
		prev, cur := s.Values[i-1], s.Values[i]
		if prev <= 0 || cur <= 0 {
			return nil, archerr.Configuration("price at %d is not positive", i)
		}
		if kind == LogReturns {
			result[i-1] = 100 * math.Log(cur/prev)
		} else {
			result[i-1] = 100 * (cur/prev - 1)
		}
	}

	var timestamps []time.Time
	if s.HasTimestamps() {
		timestamps = make([]time.Time, len(result))
		copy(timestamps, s.Timestamps[1:])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     result,
		Name:       s.Name + "_returns",
	}, nil
}
