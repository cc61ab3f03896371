package mean

import (
	"math"

	"github.com/sartorproj/goarch/stats"
	"github.com/sartorproj/goarch/timeseries"
)

// ParamSummary describes one estimated parameter.
type ParamSummary struct {
	Name     string
	Value    float64
	StdError float64
	TStat    float64
	PValue   float64
}

// Summary holds the plain numeric output of a fit.
type Summary struct {
	Mean         string
	Volatility   string
	Distribution string

	Params        []ParamSummary
	LogLikelihood float64
	AIC           float64
	BIC           float64
	NumObs        int
	Converged     bool
	Message       string

	// Diagnostics on the standardized residuals. Nil when the sample is
	// too short.
	LjungBox        *stats.LjungBoxResult
	LjungBoxSquared *stats.LjungBoxResult
	ARCHLM          *stats.ARCHLMResult
}

// SummaryLags is the lag count of the residual diagnostics.
const SummaryLags = 10

// Summary collects estimates, standard errors and residual diagnostics.
func (f *FitResult) Summary() *Summary {
	m := f.Model
	s := &Summary{
		Mean:          m.kind.String(),
		Volatility:    m.vol.Name(),
		Distribution:  m.dist.Name(),
		Params:        make([]ParamSummary, len(f.Params)),
		LogLikelihood: f.LogLikelihood,
		AIC:           f.AIC,
		BIC:           f.BIC,
		NumObs:        f.NumObs,
		Converged:     f.Converged,
		Message:       f.Message,
	}

	tv, pv := f.TValues(), f.PValues()
	for i, p := range f.Params {
		s.Params[i] = ParamSummary{Name: f.Names[i], Value: p, StdError: math.NaN(), TStat: math.NaN(), PValue: math.NaN()}
		if tv != nil {
			s.Params[i].StdError = f.StdErrors[i]
			s.Params[i].TStat = tv[i]
			s.Params[i].PValue = pv[i]
		}
	}

	std := f.StdResids()[f.FirstObs:f.LastObs]
	if math.IsNaN(f.LogLikelihood) {
		return s
	}
	sq := make([]float64, len(std))
	for i, z := range std {
		sq[i] = z * z
	}
	s.LjungBox = stats.LjungBox(timeseries.New(std), SummaryLags, len(m.lags))
	s.LjungBoxSquared = stats.LjungBox(timeseries.New(sq), SummaryLags, 0)
	s.ARCHLM = stats.ARCHLM(timeseries.New(std), SummaryLags)
	return s
}
