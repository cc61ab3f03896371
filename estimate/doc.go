// Package estimate maximizes composite log-likelihoods under box bounds and
// linear inequality constraints, and estimates parameter covariances.
//
// Parameters are addressed through a Layout: an ordered list of named
// blocks whose offsets are fixed when the layout is built.
//
//	layout, err := estimate.NewLayout(meanBlock, volBlock, distBlock)
//	parts, err := layout.Split(theta) // parts[1] is the volatility block
//
// The Estimator wraps gonum's optimize package. Candidate points outside the
// feasible region never reach the likelihood:
//
//	est := estimate.New(estimate.WithLogger(logger))
//	res, err := est.Minimize(estimate.Problem{
//	    Layout:    layout,
//	    Start:     start,
//	    NegLogLik: nll,
//	})
//	if !res.Converged {
//	    log.Println(res.Message)
//	}
//
//	cov, err := estimate.Covariance(problem, res.X, estimate.Classic)
package estimate
