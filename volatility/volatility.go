package volatility

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/bootstrap"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/estimate"
)

// Process is a conditional variance process.
type Process interface {
	Name() string
	NumParams() int
	ParamNames() []string
	// Bounds scales the parameter box to the residuals being modeled.
	Bounds(resids []float64) []estimate.Bound
	Constraints() estimate.Constraints
	StartingValues(resids []float64) []float64
	// Backcast returns the pre-sample value used to start the recursion.
	Backcast(resids []float64) float64
	// ComputeVariance writes the conditional variance of every residual
	// into sigma2.
	ComputeVariance(params, resids []float64, backcast float64, sigma2 []float64) error
	// Simulate generates n residuals and variances after discarding burn
	// draws.
	Simulate(params []float64, n, burn int, shocks ShockSource) (resids, sigma2 []float64, err error)
	Forecast(req ForecastRequest) (*Forecast, error)
	// MinHistory is the number of residuals an origin needs.
	MinHistory() int
	Validate(params []float64) error
}

// Unconditional is implemented by processes with a closed-form
// unconditional variance.
type Unconditional interface {
	UnconditionalVariance(params []float64) (float64, error)
}

// ShockSource supplies standardized innovations.
type ShockSource interface {
	Draw(n int) ([]float64, error)
}

// Method selects how forecasts are produced.
type Method int

const (
	Analytic Method = iota
	Simulation
	Bootstrap
)

// String returns the lower-case method name accepted by ParseMethod.
func (m Method) String() string {
	switch m {
	case Simulation:
		return "simulation"
	case Bootstrap:
		return "bootstrap"
	}
	return "analytic"
}

// ParseMethod converts a name to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "analytic", "":
		return Analytic, nil
	case "simulation", "sim":
		return Simulation, nil
	case "bootstrap":
		return Bootstrap, nil
	}
	return Analytic, archerr.Configuration("unknown forecast method %q", s)
}

// MinBootstrapObs is the smallest number of standardized residuals a
// bootstrap forecast origin may draw from.
const MinBootstrapObs = 100

// ForecastRequest describes a variance forecast. Origins run from Start to
// the last residual; all indexes are positions in Resids. Start may be -1,
// the origin before the first residual, whose lags all come from the
// backcast.
type ForecastRequest struct {
	Params   []float64
	Resids   []float64
	Backcast float64
	Start    int
	Horizon  int
	Method   Method

	// Simulations, Rng, Dist and DistParams are used by the simulation and
	// bootstrap methods.
	Simulations int
	Rng         *rand.Rand
	Dist        distribution.Distribution
	DistParams  []float64
}

// Forecast holds variance forecasts, one row per origin.
type Forecast struct {
	Variance [][]float64
	Paths    *Paths
}

// Paths holds simulated paths indexed origin × simulation × horizon.
type Paths struct {
	Variances [][][]float64
	Shocks    [][][]float64
}

// pathFunc fills out[k] with the variance at horizon k+1 from origin r.
// z[k] is the shock at horizon k+1; a nil z asks for the expectation.
type pathFunc func(r int, z, out []float64) error

func checkRequest(req ForecastRequest, minHistory int) error {
	if req.Horizon < 1 {
		return archerr.Configuration("horizon must be at least 1, got %d", req.Horizon)
	}
	n := len(req.Resids)
	if req.Start < -1 || req.Start >= n {
		return archerr.InsufficientHistory("origin %d outside the %d available residuals", req.Start, n)
	}
	if req.Start >= 0 && req.Start+1 < minHistory {
		return archerr.InsufficientHistory("origin %d has %d residuals, the process needs %d", req.Start, req.Start+1, minHistory)
	}
	if req.Method == Simulation || req.Method == Bootstrap {
		if req.Simulations < 1 {
			return archerr.Configuration("simulations must be positive, got %d", req.Simulations)
		}
		if req.Rng == nil {
			return archerr.Configuration("%s forecasts need a random generator", req.Method)
		}
	}
	if req.Method == Simulation && req.Dist == nil {
		return archerr.Configuration("simulation forecasts need a distribution")
	}
	if req.Method == Bootstrap && req.Start+1 < MinBootstrapObs {
		return archerr.InsufficientHistory("bootstrap origin %d has fewer than %d residuals", req.Start, MinBootstrapObs)
	}
	return nil
}

// runForecast drives path over every origin. multiStep reports whether the
// analytic method is available beyond one step. std holds the standardized
// residuals used by the bootstrap.
func runForecast(req ForecastRequest, multiStep bool, std []float64, path pathFunc) (*Forecast, error) {
	if req.Method == Analytic && req.Horizon > 1 && !multiStep {
		return nil, archerr.UnsupportedForecast("analytic forecasts beyond one step are not available; use simulation or bootstrap")
	}
	h := req.Horizon
	nOrig := len(req.Resids) - req.Start
	out := &Forecast{Variance: make([][]float64, nOrig)}

	if req.Method == Analytic {
		for i := range out.Variance {
			row := make([]float64, h)
			if err := path(req.Start+i, nil, row); err != nil {
				return nil, err
			}
			out.Variance[i] = row
		}
		return out, nil
	}

	var sampler ShockSource
	if req.Method == Simulation {
		s, err := distribution.NewSampler(req.Dist, req.DistParams, req.Rng)
		if err != nil {
			return nil, err
		}
		sampler = s
	}

	paths := &Paths{
		Variances: make([][][]float64, nOrig),
		Shocks:    make([][][]float64, nOrig),
	}
	sims := req.Simulations
	for i := range out.Variance {
		r := req.Start + i
		if req.Method == Bootstrap {
			sampler = bootstrap.NewSampler(std[:r+1], req.Rng)
		}
		paths.Variances[i] = make([][]float64, sims)
		paths.Shocks[i] = make([][]float64, sims)
		avg := make([]float64, h)
		for s := 0; s < sims; s++ {
			z, err := sampler.Draw(h)
			if err != nil {
				return nil, err
			}
			v := make([]float64, h)
			if err := path(r, z, v); err != nil {
				return nil, err
			}
			floats.Add(avg, v)
			paths.Variances[i][s] = v
			paths.Shocks[i][s] = z
		}
		floats.Scale(1/float64(sims), avg)
		out.Variance[i] = avg
	}
	out.Paths = paths
	return out, nil
}

// ewmaBackcast is the exponentially weighted average (λ = 0.94) of the first
// 75 values of x.
func ewmaBackcast(x []float64) float64 {
	n := min(len(x), 75)
	if n == 0 {
		return 1
	}
	num, den := 0.0, 0.0
	w := 1.0
	for i := 0; i < n; i++ {
		num += w * x[i]
		den += w
		w *= 0.94
	}
	return num / den
}

// powAbs returns |x_i|^power.
func powAbs(x []float64, power float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if power == 2 {
			out[i] = v * v
		} else {
			out[i] = math.Pow(math.Abs(v), power)
		}
	}
	return out
}

func meanOrOne(x []float64) float64 {
	if len(x) == 0 {
		return 1
	}
	v := floats.Sum(x) / float64(len(x))
	if !(v > 0) || math.IsInf(v, 0) {
		return 1
	}
	return v
}

// varianceCap is the level above which variances are dampened
// logarithmically.
func varianceCap(resids []float64) float64 {
	return 1e6 * meanOrOne(powAbs(resids, 2))
}

func dampen(v, upper float64) float64 {
	if v > upper {
		return upper + math.Log(v/upper)
	}
	return v
}

func checkLengths(params []float64, want int, resids, sigma2 []float64) error {
	if len(params) != want {
		return archerr.InvalidParameter("expected %d volatility parameters, got %d", want, len(params))
	}
	if len(sigma2) != len(resids) {
		return archerr.ShapeMismatch("%d residuals but room for %d variances", len(resids), len(sigma2))
	}
	return nil
}

func checkFinite(names []string, params []float64) error {
	for i, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return archerr.InvalidParameter("%s is not finite", names[i])
		}
	}
	return nil
}

// gaussianLogLik is the normal log-likelihood used to rank starting values.
func gaussianLogLik(resids, sigma2 []float64) float64 {
	ll := 0.0
	for i, e := range resids {
		ll -= 0.5 * (math.Log(sigma2[i]) + e*e/sigma2[i])
	}
	return ll
}

// standardize returns resids / sqrt(sigma2).
func standardize(resids, sigma2 []float64) []float64 {
	std := make([]float64, len(resids))
	for i, e := range resids {
		std[i] = e / math.Sqrt(sigma2[i])
	}
	return std
}
