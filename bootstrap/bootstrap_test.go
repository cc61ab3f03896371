package bootstrap

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goarch/archerr"
)

func sample(n int) []float64 {
	rng := rand.New(rand.NewPCG(10, 20))
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()*2 + 1
	}
	return x
}

func meanStat(data ...[]float64) ([]float64, error) {
	return []float64{stat.Mean(data[0], nil)}, nil
}

func TestResamplersStayInRange(t *testing.T) {
	tests := []struct {
		name string
		r    Resampler
	}{
		{"iid", IID{}},
		{"stationary", Stationary{BlockSize: 5}},
		{"circular", CircularBlock{BlockSize: 7}},
		{"stationary degenerate", Stationary{BlockSize: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			idx := tt.r.Indices(rng, 50)
			require.Len(t, idx, 50)
			for _, i := range idx {
				assert.GreaterOrEqual(t, i, 0)
				assert.Less(t, i, 50)
			}
		})
	}
}

func TestCircularBlocksAreContiguous(t *testing.T) {
	idx := CircularBlock{BlockSize: 4}.Indices(rand.New(rand.NewPCG(3, 4)), 20)
	for b := 0; b < 20; b += 4 {
		for j := 1; j < 4; j++ {
			assert.Equal(t, (idx[b]+j)%20, idx[b+j])
		}
	}
}

func TestStationaryMeanBlockLength(t *testing.T) {
	idx := Stationary{BlockSize: 10}.Indices(rand.New(rand.NewPCG(5, 6)), 100000)
	breaks := 0
	for i := 1; i < len(idx); i++ {
		if idx[i] != (idx[i-1]+1)%len(idx) {
			breaks++
		}
	}
	assert.InEpsilon(t, 10, float64(len(idx))/float64(breaks+1), 0.05)
}

func TestSeedReproducibility(t *testing.T) {
	x := sample(100)
	a, err := New(Stationary{BlockSize: 8}, 99, x)
	require.NoError(t, err)
	b, err := New(Stationary{BlockSize: 8}, 99, x)
	require.NoError(t, err)
	c, err := New(Stationary{BlockSize: 8}, 100, x)
	require.NoError(t, err)

	assert.Equal(t, a.Indices(3), b.Indices(3))
	assert.NotEqual(t, a.Indices(3), a.Indices(4))
	assert.NotEqual(t, a.Indices(3), c.Indices(3))

	a.SetWorkers(1)
	b.SetWorkers(8)
	ra, err := a.Apply(context.Background(), 200, meanStat)
	require.NoError(t, err)
	rb, err := b.Apply(context.Background(), 200, meanStat)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
}

func TestJointResampling(t *testing.T) {
	x := sample(30)
	y := make([]float64, len(x))
	for i := range x {
		y[i] = 3 * x[i]
	}
	bs, err := New(IID{}, 1, x, y)
	require.NoError(t, err)
	out := bs.Resample(0)
	require.Len(t, out, 2)
	for i := range out[0] {
		assert.Equal(t, 3*out[0][i], out[1][i])
	}

	_, err = New(IID{}, 1, x, y[:10])
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
	_, err = New(IID{}, 1)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestCovOfMean(t *testing.T) {
	x := sample(500)
	bs, err := New(IID{}, 7, x)
	require.NoError(t, err)
	cov, err := bs.Cov(context.Background(), 2000, meanStat)
	require.NoError(t, err)
	want := stat.Variance(x, nil) / float64(len(x))
	assert.InEpsilon(t, want, cov.At(0, 0), 0.1)
}

func TestConfInt(t *testing.T) {
	x := sample(500)
	bs, err := New(CircularBlock{BlockSize: 5}, 11, x)
	require.NoError(t, err)
	lo, hi, err := bs.ConfInt(context.Background(), 1000, meanStat, 0.95)
	require.NoError(t, err)
	m := stat.Mean(x, nil)
	assert.Less(t, lo[0], m)
	assert.Greater(t, hi[0], m)
	assert.InDelta(t, 2*1.96*stat.StdDev(x, nil)/math.Sqrt(500), hi[0]-lo[0], 0.1)

	_, _, err = bs.ConfInt(context.Background(), 10, meanStat, 1.5)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestApplyCompletes(t *testing.T) {
	bs, err := New(IID{}, 1, []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)

	results, err := bs.Apply(context.Background(), 3, meanStat)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.Len(t, r, 1)
		assert.GreaterOrEqual(t, r[0], 1.0)
		assert.LessOrEqual(t, r[0], 5.0)
	}

	cov, err := bs.Cov(context.Background(), 50, meanStat)
	require.NoError(t, err)
	assert.Greater(t, cov.At(0, 0), 0.0)
}

func TestApplyErrors(t *testing.T) {
	bs, err := New(IID{}, 1, sample(20))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = bs.Apply(context.Background(), 10, func(...[]float64) ([]float64, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bs.Apply(ctx, 10, meanStat)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = bs.Apply(context.Background(), 0, meanStat)
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}

func TestSampler(t *testing.T) {
	data := []float64{-1, 0.5, 2}
	s := NewSampler(data, rand.New(rand.NewPCG(1, 1)))
	draws, err := s.Draw(1000)
	require.NoError(t, err)
	counts := map[float64]int{}
	for _, d := range draws {
		counts[d]++
	}
	assert.Len(t, counts, 3)

	_, err = NewSampler(nil, rand.New(rand.NewPCG(1, 1))).Draw(5)
	assert.ErrorIs(t, err, archerr.ErrInsufficientHistory)
}

func TestPercentile(t *testing.T) {
	v, err := Percentile([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 50)
	require.NoError(t, err)
	assert.InDelta(t, 5, v, 1e-12)
	_, err = Percentile(nil, 50)
	assert.Error(t, err)
}
