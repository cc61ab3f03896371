// Package bootstrap provides seeded resampling for inference and for
// bootstrap forecasts.
//
// A Bootstrap holds one or more equal-length data sets and a Resampler.
// Replication r always uses a generator derived from (seed, r), so results
// do not depend on how replications are scheduled:
//
//	bs, _ := bootstrap.New(bootstrap.Stationary{BlockSize: 10}, 42, returns)
//	reps, err := bs.Apply(ctx, 1000, func(data ...[]float64) ([]float64, error) {
//	    return []float64{stat.Mean(data[0], nil)}, nil
//	})
package bootstrap
