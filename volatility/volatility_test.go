package volatility

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/distribution"
	"github.com/sartorproj/goarch/estimate"
)

func normalShocks(t *testing.T, seed uint64) ShockSource {
	t.Helper()
	s, err := distribution.NewSampler(distribution.NewNormal(), nil, rand.New(rand.NewPCG(seed, seed+1)))
	require.NoError(t, err)
	return s
}

func simulateGARCH(t *testing.T, n int) []float64 {
	t.Helper()
	g, err := NewGARCH(1, 0, 1, 2)
	require.NoError(t, err)
	resids, _, err := g.Simulate([]float64{0.01, 0.05, 0.90}, n, 500, normalShocks(t, 42))
	require.NoError(t, err)
	return resids
}

func TestEWMABackcast(t *testing.T) {
	assert.InDelta(t, (1+0.94*4)/1.94, ewmaBackcast([]float64{1, 4}), 1e-12)

	long := make([]float64, 200)
	for i := range long {
		long[i] = 1
	}
	long[150] = 1e9
	assert.InDelta(t, 1, ewmaBackcast(long), 1e-12)
}

func TestGARCHRecursion(t *testing.T) {
	g, err := NewGARCH(1, 1, 1, 2)
	require.NoError(t, err)
	params := []float64{0.1, 0.05, 0.1, 0.8}
	resids := []float64{0.5, -1.2, 0.3, -0.4, 2}
	bc := g.Backcast(resids)
	sigma2 := make([]float64, len(resids))
	require.NoError(t, g.ComputeVariance(params, resids, bc, sigma2))

	want := make([]float64, len(resids))
	want[0] = 0.1 + 0.05*bc + 0.1*0.5*bc + 0.8*bc
	for i := 1; i < len(resids); i++ {
		e := resids[i-1]
		neg := 0.0
		if e < 0 {
			neg = e * e
		}
		want[i] = 0.1 + 0.05*e*e + 0.1*neg + 0.8*want[i-1]
	}
	assert.InDeltaSlice(t, want, sigma2, 1e-12)
}

func TestTARCHRecursion(t *testing.T) {
	g, err := NewTARCH(1, 1, 1)
	require.NoError(t, err)
	params := []float64{0.05, 0.05, 0.1, 0.85}
	resids := []float64{-0.5, 1, -2}
	bc := g.Backcast(resids)
	sigma2 := make([]float64, 3)
	require.NoError(t, g.ComputeVariance(params, resids, bc, sigma2))

	s := 0.05 + 0.05*bc + 0.1*0.5*bc + 0.85*bc
	assert.InDelta(t, s*s, sigma2[0], 1e-12)
	s = 0.05 + 0.05*0.5 + 0.1*0.5 + 0.85*s
	assert.InDelta(t, s*s, sigma2[1], 1e-12)
}

func TestNamesAndConstruction(t *testing.T) {
	tests := []struct {
		name    string
		p, o, q int
		power   float64
		want    string
		wantErr bool
	}{
		{"arch", 1, 0, 0, 2, "ARCH", false},
		{"garch", 1, 0, 1, 2, "GARCH", false},
		{"gjr", 1, 1, 1, 2, "GJR-GARCH", false},
		{"tarch", 1, 1, 1, 1, "TARCH/ZARCH", false},
		{"avgarch", 1, 0, 1, 1, "AVGARCH", false},
		{"power", 1, 0, 1, 1.5, "Power GARCH", false},
		{"negative", -1, 0, 1, 2, "", true},
		{"q only", 0, 0, 1, 2, "", true},
		{"zero power", 1, 0, 1, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGARCH(tt.p, tt.o, tt.q, tt.power)
			if tt.wantErr {
				assert.ErrorIs(t, err, archerr.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Name())
			assert.Len(t, g.ParamNames(), g.NumParams())
		})
	}

	_, err := NewHARCH(1, 5, 5)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
	_, err = NewEWMA(1)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
	_, err = NewEGARCH(0, 0, 1)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestGARCHConstraints(t *testing.T) {
	g, err := NewGJR(1, 1, 1)
	require.NoError(t, err)
	cons := g.Constraints()
	require.Equal(t, 2, cons.Len())
	assert.Equal(t, []float64{0, 1, 1, 0}, cons.A[0])
	assert.Equal(t, []float64{0, -1, -0.5, -1}, cons.A[1])
	assert.Equal(t, -1.0, cons.B[1])

	slack := cons.Slack([]float64{0.1, 0.05, 0.1, 0.95})
	assert.Less(t, slack[1], 0.0)
}

func TestUnconditionalVariance(t *testing.T) {
	resids := simulateGARCH(t, 500)

	tests := []struct {
		name   string
		proc   Process
		params []float64
		want   float64
	}{
		{"garch", must(NewGARCH(1, 0, 1, 2)), []float64{0.01, 0.05, 0.90}, 0.2},
		{"garch(2,2)", must(NewGARCH(2, 0, 2, 2)), []float64{0.024, 0.05, 0.03, 0.4, 0.4}, 0.2},
		{"harch", must(NewHARCH(1, 5, 22)), []float64{0.05, 0.2, 0.3, 0.25}, 0.2},
		{"constant", NewConstantVariance(), []float64{0.3}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := tt.proc.(Unconditional).UnconditionalVariance(tt.params)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, u, 1e-12)

			f, err := tt.proc.Forecast(ForecastRequest{
				Params:   tt.params,
				Resids:   resids,
				Backcast: tt.proc.Backcast(resids),
				Start:    len(resids) - 1,
				Horizon:  3000,
				Method:   Analytic,
			})
			require.NoError(t, err)
			require.Len(t, f.Variance, 1)
			assert.InDelta(t, u, f.Variance[0][2999], 1e-8)
		})
	}
}

func TestGJRUnconditionalMatchesSimulation(t *testing.T) {
	g, err := NewGJR(1, 1, 1)
	require.NoError(t, err)
	params := []float64{0.02, 0.03, 0.1, 0.85}
	u, err := g.UnconditionalVariance(params)
	require.NoError(t, err)
	assert.InDelta(t, 0.02/(1-0.03-0.05-0.85), u, 1e-12)

	resids, _, err := g.Simulate(params, 400000, 1000, normalShocks(t, 9))
	require.NoError(t, err)
	mean := 0.0
	for _, e := range resids {
		mean += e * e
	}
	mean /= float64(len(resids))
	assert.InEpsilon(t, u, mean, 0.05)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// randomFeasible draws parameters uniformly inside the bounds until the
// constraints hold.
func randomFeasible(rng *rand.Rand, proc Process, resids []float64) []float64 {
	layout, err := estimate.NewLayout(estimate.Block{
		Name:        "volatility",
		Names:       proc.ParamNames(),
		Bounds:      proc.Bounds(resids),
		Constraints: proc.Constraints(),
	})
	if err != nil {
		panic(err)
	}
	for {
		x := make([]float64, proc.NumParams())
		for i, b := range proc.Bounds(resids) {
			lo, hi := b.Lower, b.Upper
			if math.IsInf(lo, -1) {
				lo = -1
			}
			if math.IsInf(hi, 1) {
				hi = 1
			}
			x[i] = lo + rng.Float64()*(hi-lo)
		}
		if layout.Feasible(x, 0) {
			return x
		}
	}
}

func TestVariancePositive(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	resids, err := distribution.NewStudentsT().Simulate([]float64{4}, rng, 1000)
	require.NoError(t, err)

	procs := map[string]Process{
		"garch":   must(NewGARCH(1, 1, 1, 2)),
		"tarch":   must(NewTARCH(1, 1, 1)),
		"power":   must(NewGARCH(2, 0, 1, 1.5)),
		"harch":   must(NewHARCH(1, 5, 22)),
		"ewma":    NewEstimatedEWMA(),
		"const":   NewConstantVariance(),
		"arch(3)": must(NewARCH(3)),
	}
	for name, proc := range procs {
		t.Run(name, func(t *testing.T) {
			bc := proc.Backcast(resids)
			sigma2 := make([]float64, len(resids))
			for trial := 0; trial < 200; trial++ {
				params := randomFeasible(rng, proc, resids)
				require.NoError(t, proc.ComputeVariance(params, resids, bc, sigma2), "params %v", params)
				for i, v := range sigma2 {
					if !(v > 0) || math.IsInf(v, 0) {
						t.Fatalf("sigma2[%d] = %g for params %v", i, v, params)
					}
				}
			}
		})
	}
}

func TestEGARCHVariancePositive(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	resids, err := distribution.NewStudentsT().Simulate([]float64{5}, rng, 1000)
	require.NoError(t, err)
	eg := must(NewEGARCH(1, 1, 1))
	bc := eg.Backcast(resids)
	sigma2 := make([]float64, len(resids))
	for trial := 0; trial < 200; trial++ {
		alpha := 0.3 * rng.Float64()
		params := []float64{
			0.5*rng.Float64() - 0.25,
			alpha,
			alpha * (2*rng.Float64() - 1),
			rng.Float64(),
		}
		require.NoError(t, eg.ComputeVariance(params, resids, bc, sigma2), "params %v", params)
		for i, v := range sigma2 {
			if !(v > 0) || math.IsInf(v, 0) {
				t.Fatalf("sigma2[%d] = %g for params %v", i, v, params)
			}
		}
	}
}

func TestNonPositiveBaseFails(t *testing.T) {
	g := must(NewGARCH(1, 0, 1, 2))
	resids := []float64{0.1, -0.2, 0.3}
	sigma2 := make([]float64, 3)
	err := g.ComputeVariance([]float64{-1, 0.05, 0.1}, resids, 0.01, sigma2)
	assert.ErrorIs(t, err, archerr.ErrNumerical)

	err = g.ComputeVariance([]float64{0.1, 0.05}, resids, 0.01, sigma2)
	assert.ErrorIs(t, err, archerr.ErrInvalidParameter)
	err = g.ComputeVariance([]float64{0.1, 0.05, 0.9}, resids, 0.01, sigma2[:2])
	assert.ErrorIs(t, err, archerr.ErrShapeMismatch)
}

func TestHARCHMatchesARCH(t *testing.T) {
	resids := simulateGARCH(t, 300)
	h := must(NewHARCH(1))
	a := must(NewARCH(1))
	params := []float64{0.05, 0.4}
	sh := make([]float64, len(resids))
	sa := make([]float64, len(resids))
	require.NoError(t, h.ComputeVariance(params, resids, h.Backcast(resids), sh))
	require.NoError(t, a.ComputeVariance(params, resids, a.Backcast(resids), sa))
	assert.Equal(t, sa, sh)

	h2 := must(NewHARCH(2, 1))
	assert.Equal(t, []int{1, 2}, h2.Lags())
	assert.InDeltaSlice(t, []float64{0.1, 0.2 + 0.15, 0.15}, h2.expand([]float64{0.1, 0.2, 0.3}), 1e-15)
}

func TestEWMARecursion(t *testing.T) {
	e := NewRiskMetrics()
	resids := []float64{0.2, -0.5, 1, 0.1}
	bc := e.Backcast(resids)
	sigma2 := make([]float64, 4)
	require.NoError(t, e.ComputeVariance(nil, resids, bc, sigma2))
	want := bc
	for i := range resids {
		assert.InDelta(t, want, sigma2[i], 1e-12)
		want = 0.94*want + 0.06*resids[i]*resids[i]
	}

	f, err := e.Forecast(ForecastRequest{Resids: resids, Backcast: bc, Start: 3, Horizon: 5, Method: Analytic})
	require.NoError(t, err)
	for _, v := range f.Variance[0] {
		assert.InDelta(t, want, v, 1e-12)
	}
}

func TestEGARCHRecursion(t *testing.T) {
	eg := must(NewEGARCH(1, 1, 1))
	params := []float64{-0.1, 0.1, -0.05, 0.95}
	resids := []float64{0.5, -1, 0.2}
	bc := eg.Backcast(resids)
	sigma2 := make([]float64, 3)
	require.NoError(t, eg.ComputeVariance(params, resids, bc, sigma2))

	lns := -0.1 + 0.95*bc
	assert.InDelta(t, math.Exp(lns), sigma2[0], 1e-12)
	z := 0.5 / math.Sqrt(sigma2[0])
	lns = -0.1 + 0.1*(math.Abs(z)-math.Sqrt(2/math.Pi)) - 0.05*z + 0.95*lns
	assert.InDelta(t, math.Exp(lns), sigma2[1], 1e-12)
}

func TestOneStepForecastMatchesRecursion(t *testing.T) {
	resids := simulateGARCH(t, 400)
	procs := map[string]struct {
		proc   Process
		params []float64
	}{
		"garch":  {must(NewGARCH(1, 0, 1, 2)), []float64{0.01, 0.05, 0.9}},
		"gjr":    {must(NewGJR(1, 1, 1)), []float64{0.01, 0.03, 0.06, 0.88}},
		"egarch": {must(NewEGARCH(1, 1, 1)), []float64{-0.05, 0.1, -0.05, 0.97}},
	}
	for name, tt := range procs {
		t.Run(name, func(t *testing.T) {
			bc := tt.proc.Backcast(resids)
			sigma2 := make([]float64, len(resids))
			require.NoError(t, tt.proc.ComputeVariance(tt.params, resids, bc, sigma2))

			start := 350
			f, err := tt.proc.Forecast(ForecastRequest{
				Params: tt.params, Resids: resids, Backcast: bc,
				Start: start, Horizon: 1, Method: Analytic,
			})
			require.NoError(t, err)
			require.Len(t, f.Variance, len(resids)-start)
			for i := 0; i < len(resids)-start-1; i++ {
				assert.InDelta(t, sigma2[start+i+1], f.Variance[i][0], 1e-12)
			}

			// the origin before the first residual forecasts from the backcast
			pre, err := tt.proc.Forecast(ForecastRequest{
				Params: tt.params, Resids: resids, Backcast: bc,
				Start: -1, Horizon: 1, Method: Analytic,
			})
			require.NoError(t, err)
			require.Len(t, pre.Variance, len(resids)+1)
			assert.InDelta(t, sigma2[0], pre.Variance[0][0], 1e-12)
			assert.InDelta(t, sigma2[1], pre.Variance[1][0], 1e-12)

			_, err = tt.proc.Forecast(ForecastRequest{
				Params: tt.params, Resids: resids, Backcast: bc,
				Start: -2, Horizon: 1, Method: Analytic,
			})
			assert.ErrorIs(t, err, archerr.ErrInsufficientHistory)
		})
	}
}

func TestSimulationForecast(t *testing.T) {
	resids := simulateGARCH(t, 400)
	g := must(NewGARCH(1, 0, 1, 2))
	params := []float64{0.01, 0.05, 0.9}
	req := ForecastRequest{
		Params: params, Resids: resids, Backcast: g.Backcast(resids),
		Start: 399, Horizon: 5, Method: Analytic,
	}
	analytic, err := g.Forecast(req)
	require.NoError(t, err)
	assert.Nil(t, analytic.Paths)

	req.Method = Simulation
	req.Simulations = 20000
	req.Rng = rand.New(rand.NewPCG(1, 1))
	req.Dist = distribution.NewNormal()
	sim, err := g.Forecast(req)
	require.NoError(t, err)
	require.NotNil(t, sim.Paths)
	require.Len(t, sim.Paths.Variances[0], 20000)
	require.Len(t, sim.Paths.Shocks[0][0], 5)

	assert.InDelta(t, analytic.Variance[0][0], sim.Variance[0][0], 1e-12)
	for h := 1; h < 5; h++ {
		assert.InEpsilon(t, analytic.Variance[0][h], sim.Variance[0][h], 0.02)
	}
}

func TestBootstrapForecast(t *testing.T) {
	resids := simulateGARCH(t, 300)
	g := must(NewGARCH(1, 0, 1, 2))
	params := []float64{0.01, 0.05, 0.9}
	bc := g.Backcast(resids)
	req := ForecastRequest{
		Params: params, Resids: resids, Backcast: bc,
		Start: 250, Horizon: 3, Method: Bootstrap,
		Simulations: 50, Rng: rand.New(rand.NewPCG(3, 3)),
	}
	a, err := g.Forecast(req)
	require.NoError(t, err)
	req.Rng = rand.New(rand.NewPCG(3, 3))
	b, err := g.Forecast(req)
	require.NoError(t, err)
	assert.Equal(t, a.Variance, b.Variance)

	sigma2 := make([]float64, len(resids))
	require.NoError(t, g.ComputeVariance(params, resids, bc, sigma2))
	seen := map[float64]bool{}
	for i := 0; i <= 250; i++ {
		seen[resids[i]/math.Sqrt(sigma2[i])] = true
	}
	for _, path := range a.Paths.Shocks[0] {
		for _, z := range path {
			assert.True(t, seen[z], "shock %g not drawn from history up to the origin", z)
		}
	}

	req.Start = 50
	_, err = g.Forecast(req)
	assert.ErrorIs(t, err, archerr.ErrInsufficientHistory)
}

func TestForecastErrors(t *testing.T) {
	resids := simulateGARCH(t, 200)
	gjr := must(NewGJR(1, 1, 1))
	params := []float64{0.01, 0.03, 0.06, 0.88}
	req := ForecastRequest{Params: params, Resids: resids, Backcast: gjr.Backcast(resids), Start: 199, Horizon: 2}

	_, err := gjr.Forecast(req)
	assert.ErrorIs(t, err, archerr.ErrUnsupportedForecast)

	req.Horizon = 1
	_, err = gjr.Forecast(req)
	assert.NoError(t, err)

	tarch := must(NewTARCH(1, 0, 1))
	_, err = tarch.Forecast(ForecastRequest{Params: []float64{0.01, 0.05, 0.9}, Resids: resids, Start: 199, Horizon: 3})
	assert.ErrorIs(t, err, archerr.ErrUnsupportedForecast)

	g22 := must(NewGARCH(2, 0, 2, 2))
	_, err = g22.Forecast(ForecastRequest{Params: []float64{0.01, 0.02, 0.03, 0.4, 0.4}, Resids: resids, Start: 0, Horizon: 1})
	assert.ErrorIs(t, err, archerr.ErrInsufficientHistory)

	_, err = g22.Forecast(ForecastRequest{Params: []float64{0.01, 0.02, 0.03, 0.4, 0.4}, Resids: resids, Start: 200, Horizon: 1})
	assert.ErrorIs(t, err, archerr.ErrInsufficientHistory)

	_, err = g22.Forecast(ForecastRequest{Params: []float64{-0.01, 0.02, 0.03, 0.4, 0.4}, Resids: resids, Start: 10, Horizon: 1})
	assert.ErrorIs(t, err, archerr.ErrInvalidParameter)

	_, err = g22.Forecast(ForecastRequest{Params: []float64{0.01, 0.02, 0.03, 0.4, 0.4}, Resids: resids, Start: 10, Horizon: 0})
	assert.ErrorIs(t, err, archerr.ErrConfiguration)

	_, err = g22.Forecast(ForecastRequest{Params: []float64{0.01, 0.02, 0.03, 0.4, 0.4}, Resids: resids, Start: 10, Horizon: 2, Method: Simulation, Simulations: 10})
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestSimulate(t *testing.T) {
	g := must(NewGARCH(1, 0, 1, 2))
	resids, sigma2, err := g.Simulate([]float64{0.01, 0.05, 0.9}, 100000, 500, normalShocks(t, 77))
	require.NoError(t, err)
	require.Len(t, resids, 100000)
	require.Len(t, sigma2, 100000)
	assert.InEpsilon(t, 0.2, stat.Variance(resids, nil), 0.05)

	_, _, err = g.Simulate([]float64{0.01, 0.05, 0.9}, 0, 10, normalShocks(t, 1))
	assert.ErrorIs(t, err, archerr.ErrConfiguration)

	eg := must(NewEGARCH(1, 0, 1))
	r, s, err := eg.Simulate([]float64{-0.1, 0.1, 0.95}, 1000, 100, normalShocks(t, 2))
	require.NoError(t, err)
	assert.Len(t, r, 1000)
	for _, v := range s {
		assert.Greater(t, v, 0.0)
	}
}

func TestStartingValuesFeasible(t *testing.T) {
	resids := simulateGARCH(t, 1000)
	for _, proc := range []Process{
		must(NewGARCH(1, 0, 1, 2)),
		must(NewGJR(1, 1, 1)),
		must(NewTARCH(1, 1, 1)),
		must(NewHARCH(1, 5, 22)),
		NewConstantVariance(),
	} {
		t.Run(proc.Name(), func(t *testing.T) {
			layout, err := estimate.NewLayout(estimate.Block{
				Name: "volatility", Names: proc.ParamNames(),
				Bounds: proc.Bounds(resids), Constraints: proc.Constraints(),
			})
			require.NoError(t, err)
			sv := proc.StartingValues(resids)
			assert.True(t, layout.Feasible(sv, 0), "start %v", sv)
		})
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{"analytic": Analytic, "Simulation": Simulation, "bootstrap": Bootstrap} {
		m, err := ParseMethod(in)
		require.NoError(t, err)
		assert.Equal(t, want, m)
	}
	_, err := ParseMethod("magic")
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}
