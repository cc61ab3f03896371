// Package distribution implements standardized innovation laws for
// conditional volatility models.
//
// Every distribution has zero mean and unit variance, so a residual divided
// by its conditional standard deviation is distributed by the law itself:
//
//	dist := distribution.NewStudentsT()
//	lls := make([]float64, len(z))
//	err := dist.LogPDF([]float64{8}, z, lls)
//
//	q, err := dist.PPF([]float64{8}, 0.01) // 1% quantile
//
// Draws always come from a caller-owned generator:
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	shocks, err := dist.Simulate([]float64{8}, rng, 1000)
package distribution
