package bootstrap

import (
	"context"
	"math/rand/v2"
	"runtime"

	mstats "github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goarch/archerr"
)

// Statistic computes a vector from one resampled copy of the data.
type Statistic func(data ...[]float64) ([]float64, error)

// Bootstrap resamples equal-length data sets jointly.
type Bootstrap struct {
	resampler Resampler
	seed      uint64
	data      [][]float64
	n         int
	workers   int
}

// New returns a Bootstrap over data. Every data set must have the same
// non-zero length.
func New(r Resampler, seed uint64, data ...[]float64) (*Bootstrap, error) {
	if r == nil {
		return nil, archerr.Configuration("bootstrap needs a resampler")
	}
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, archerr.Configuration("bootstrap needs at least one non-empty data set")
	}
	n := len(data[0])
	for i, d := range data {
		if len(d) != n {
			return nil, archerr.Configuration("data set %d has %d observations, want %d", i, len(d), n)
		}
	}
	return &Bootstrap{
		resampler: r,
		seed:      seed,
		data:      data,
		n:         n,
		workers:   runtime.GOMAXPROCS(0),
	}, nil
}

// SetWorkers bounds the number of replications run concurrently.
func (b *Bootstrap) SetWorkers(n int) {
	b.workers = max(n, 1)
}

func (b *Bootstrap) rng(rep int) *rand.Rand {
	return rand.New(rand.NewPCG(b.seed, uint64(rep)))
}

// Indices returns the resampling indices of replication rep.
func (b *Bootstrap) Indices(rep int) []int {
	return b.resampler.Indices(b.rng(rep), b.n)
}

// Resample returns replication rep of every data set.
func (b *Bootstrap) Resample(rep int) [][]float64 {
	idx := b.Indices(rep)
	out := make([][]float64, len(b.data))
	for k, d := range b.data {
		r := make([]float64, len(idx))
		for i, j := range idx {
			r[i] = d[j]
		}
		out[k] = r
	}
	return out
}

// Apply evaluates fn on reps resampled copies. Row r of the result is
// replication r. Cancelling ctx stops scheduling new replications.
func (b *Bootstrap) Apply(ctx context.Context, reps int, fn Statistic) ([][]float64, error) {
	if reps < 1 {
		return nil, archerr.Configuration("replications must be positive, got %d", reps)
	}
	results := make([][]float64, reps)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for r := 0; r < reps; r++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := fn(b.Resample(r)...)
			if err != nil {
				return archerr.Wrapf(err, "replication %d", r)
			}
			results[r] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width := len(results[0])
	for r, v := range results {
		if len(v) != width {
			return nil, archerr.ShapeMismatch("replication %d returned %d values, want %d", r, len(v), width)
		}
	}
	return results, nil
}

// Cov estimates the covariance of fn from reps replications.
func (b *Bootstrap) Cov(ctx context.Context, reps int, fn Statistic) (*mat.SymDense, error) {
	results, err := b.Apply(ctx, reps, fn)
	if err != nil {
		return nil, err
	}
	if reps < 2 {
		return nil, archerr.Configuration("covariance needs at least 2 replications")
	}
	m := mat.NewDense(reps, len(results[0]), nil)
	for r, v := range results {
		m.SetRow(r, v)
	}
	cov := mat.NewSymDense(len(results[0]), nil)
	stat.CovarianceMatrix(cov, m, nil)
	return cov, nil
}

// ConfInt returns percentile confidence intervals of fn at the given level,
// e.g. 0.95.
func (b *Bootstrap) ConfInt(ctx context.Context, reps int, fn Statistic, level float64) (lower, upper []float64, err error) {
	if !(level > 0 && level < 1) {
		return nil, nil, archerr.Configuration("confidence level must be in (0, 1), got %g", level)
	}
	results, err := b.Apply(ctx, reps, fn)
	if err != nil {
		return nil, nil, err
	}
	k := len(results[0])
	lower = make([]float64, k)
	upper = make([]float64, k)
	tail := 100 * (1 - level) / 2
	col := make([]float64, reps)
	for j := 0; j < k; j++ {
		for r := range results {
			col[r] = results[r][j]
		}
		lo, err := Percentile(col, tail)
		if err != nil {
			return nil, nil, err
		}
		hi, err := Percentile(col, 100-tail)
		if err != nil {
			return nil, nil, err
		}
		lower[j], upper[j] = lo, hi
	}
	return lower, upper, nil
}

// Percentile returns the pct-th percentile (0 < pct <= 100) of x.
func Percentile(x []float64, pct float64) (float64, error) {
	v, err := mstats.Percentile(mstats.Float64Data(x), pct)
	if err != nil {
		return 0, archerr.Wrapf(err, "percentile %g of %d values", pct, len(x))
	}
	return v, nil
}

// Sampler draws values with replacement from a fixed data set.
type Sampler struct {
	data []float64
	rng  *rand.Rand
}

// NewSampler returns a Sampler over data using rng.
func NewSampler(data []float64, rng *rand.Rand) *Sampler {
	return &Sampler{data: data, rng: rng}
}

// Draw returns n values.
func (s *Sampler) Draw(n int) ([]float64, error) {
	if len(s.data) == 0 {
		return nil, archerr.InsufficientHistory("cannot resample from an empty data set")
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = s.data[s.rng.IntN(len(s.data))]
	}
	return out, nil
}
