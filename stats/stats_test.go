package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goarch/archerr"
	"github.com/sartorproj/goarch/timeseries"
)

func whiteNoise(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 1))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}

func randomWalk(n int, seed uint64) []float64 {
	x := whiteNoise(n, seed)
	for i := 1; i < n; i++ {
		x[i] += x[i-1]
	}
	return x
}

func TestACF(t *testing.T) {
	n := 2000
	phi := 0.8
	e := whiteNoise(n, 3)
	values := make([]float64, n)
	for i := 1; i < n; i++ {
		values[i] = phi*values[i-1] + e[i]
	}

	acf := ACF(timeseries.New(values), 5)
	require.Len(t, acf, 6)
	assert.InDelta(t, 1, acf[0], 1e-12)
	assert.InDelta(t, phi, acf[1], 0.05)
	assert.InDelta(t, phi*phi, acf[2], 0.07)

	assert.Nil(t, ACF(timeseries.New([]float64{2, 2, 2}), 2))
	assert.Nil(t, ACF(timeseries.New(nil), 2))
}

func TestACFBiasedDivisor(t *testing.T) {
	got := ACF(timeseries.New([]float64{1, 2, 3, 4}), 10)
	want := []float64{1, 0.25, -0.3, -0.45}
	require.Len(t, got, len(want))
	for k := range want {
		assert.InDelta(t, want[k], got[k], 1e-12, "lag %d", k)
	}
}

func TestLjungBox(t *testing.T) {
	noise := LjungBox(timeseries.New(whiteNoise(1000, 5)), 10, 0)
	require.NotNil(t, noise)
	assert.Greater(t, noise.PValue, 0.01)
	assert.Equal(t, 10, noise.DOF)

	walk := LjungBox(timeseries.New(randomWalk(1000, 5)), 10, 2)
	require.NotNil(t, walk)
	assert.Less(t, walk.PValue, 1e-6)
	assert.Equal(t, 8, walk.DOF)

	assert.Nil(t, LjungBox(timeseries.New([]float64{1, 2, 3}), 5, 0))
}

func TestARCHLM(t *testing.T) {
	noise := ARCHLM(timeseries.New(whiteNoise(2000, 7)), 5)
	require.NotNil(t, noise)
	assert.Greater(t, noise.PValue, 0.01)

	// ARCH(1) with a large alpha has strong clustering.
	z := whiteNoise(2000, 8)
	e := make([]float64, len(z))
	s2 := 1.0
	for i := range z {
		e[i] = z[i] * math.Sqrt(s2)
		s2 = 0.2 + 0.5*e[i]*e[i]
	}
	arch := ARCHLM(timeseries.New(e), 5)
	require.NotNil(t, arch)
	assert.Less(t, arch.PValue, 1e-6)
	assert.Equal(t, 1995, arch.NObs)
}

func TestADF(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		trend  Trend
		reject bool
	}{
		{"white noise constant", whiteNoise(500, 11), Constant, true},
		{"white noise none", whiteNoise(500, 12), None, true},
		{"random walk constant", randomWalk(500, 13), Constant, false},
		{"random walk trend", randomWalk(500, 14), ConstantTrend, false},
		{"white noise ctt", whiteNoise(500, 15), ConstantTrendSquared, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ADF(timeseries.New(tt.values), tt.trend, -1)
			require.NoError(t, err)
			if tt.reject {
				assert.Less(t, res.PValue, 0.001, "stat=%g", res.Statistic)
				assert.True(t, res.Stationary)
			} else {
				assert.Greater(t, res.PValue, 0.01, "stat=%g", res.Statistic)
			}
			assert.Equal(t, 7, res.Lags)
			assert.Less(t, res.CriticalValues["1%"], res.CriticalValues["5%"])
			assert.Less(t, res.CriticalValues["5%"], res.CriticalValues["10%"])
		})
	}
}

func TestDFCriticalValues(t *testing.T) {
	cv := dfCriticalValues(Constant, 1_000_000)
	assert.InDelta(t, -3.43, cv["1%"], 0.01)
	assert.InDelta(t, -2.86, cv["5%"], 0.01)
	assert.InDelta(t, -2.57, cv["10%"], 0.01)

	assert.InDelta(t, 0.05, tailPValue(cv["5%"], cv, true), 1e-9)
	assert.InDelta(t, 0.01, tailPValue(cv["1%"], cv, true), 1e-9)
	assert.Less(t, tailPValue(-6, cv, true), 0.001)
	assert.Greater(t, tailPValue(0, cv, true), 0.5)
}

func TestPhillipsPerron(t *testing.T) {
	res, err := PhillipsPerron(timeseries.New(whiteNoise(500, 21)), Constant, -1)
	require.NoError(t, err)
	assert.True(t, res.Stationary)
	assert.Less(t, res.Statistic, -10.0)

	res, err = PhillipsPerron(timeseries.New(randomWalk(500, 22)), Constant, -1)
	require.NoError(t, err)
	assert.Greater(t, res.PValue, 0.01)

	_, err = PhillipsPerron(timeseries.New(whiteNoise(50, 1)), ConstantTrendSquared, 2)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestKPSS(t *testing.T) {
	res, err := KPSS(timeseries.New(whiteNoise(500, 31)), Constant, -1)
	require.NoError(t, err)
	assert.Less(t, res.Statistic, res.CriticalValues["1%"])

	res, err = KPSS(timeseries.New(randomWalk(2000, 32)), Constant, -1)
	require.NoError(t, err)
	assert.False(t, res.Stationary, "stat=%g", res.Statistic)
	assert.Greater(t, res.Statistic, res.CriticalValues["1%"])
	assert.Equal(t, 26, res.Lags)

	_, err = KPSS(timeseries.New(whiteNoise(50, 1)), None, 2)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestUnitRootErrors(t *testing.T) {
	_, err := ADF(timeseries.New([]float64{1, 2, 3}), Constant, 0)
	assert.ErrorIs(t, err, archerr.ErrInsufficientHistory)

	bad := whiteNoise(50, 2)
	bad[10] = math.NaN()
	_, err = ADF(timeseries.New(bad), Constant, 0)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestParseTrend(t *testing.T) {
	for in, want := range map[string]Trend{"n": None, "c": Constant, "ct": ConstantTrend, "CTT": ConstantTrendSquared} {
		got, err := ParseTrend(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, must(ParseTrend(got.String())))
	}
	_, err := ParseTrend("quadratic")
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func must(t Trend, err error) Trend {
	if err != nil {
		panic(err)
	}
	return t
}
