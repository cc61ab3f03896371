package estimate

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/sartorproj/goarch/archerr"
)

// Problem is a negative log-likelihood over a parameter layout.
type Problem struct {
	Layout *Layout
	Start  []float64

	// NegLogLik returns the negative log-likelihood at x. An error marks x
	// as an infeasible candidate.
	NegLogLik func(x []float64) (float64, error)

	// LogLikObs writes per-observation log-likelihood contributions into
	// dst. Only the robust covariance needs it.
	LogLikObs func(x []float64, dst []float64) error
	NObs      int

	// Fallback is a feasible point that infeasible starting values are
	// pulled toward. Nil means the bound-clipped origin.
	Fallback []float64
}

// Result is the outcome of a minimization.
type Result struct {
	X          []float64
	NegLogLik  float64
	Converged  bool
	Status     optimize.Status
	Message    string
	Iterations int
	FuncEvals  int
}

// Estimator runs a constrained minimization of a Problem.
type Estimator struct {
	method   func() optimize.Method
	maxIter  int
	maxEvals int
	tol      float64
	stall    int
	restarts int
	logger   *zap.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithMethod sets the optimizer factory. A fresh method is built for every
// run because gonum methods keep internal state.
func WithMethod(factory func() optimize.Method) Option {
	return func(e *Estimator) {
		e.method = factory
	}
}

// WithMaxIterations caps major iterations per run.
func WithMaxIterations(n int) Option {
	return func(e *Estimator) {
		e.maxIter = n
	}
}

// WithMaxEvaluations caps objective evaluations per run.
func WithMaxEvaluations(n int) Option {
	return func(e *Estimator) {
		e.maxEvals = n
	}
}

// WithTolerance sets the absolute objective tolerance for convergence.
func WithTolerance(tol float64) Option {
	return func(e *Estimator) {
		e.tol = tol
	}
}

// WithRestarts sets how many times the optimizer is restarted from its own
// solution.
func WithRestarts(n int) Option {
	return func(e *Estimator) {
		e.restarts = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger
	}
}

// New creates an Estimator. The default method is Nelder-Mead.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		method:   func() optimize.Method { return &optimize.NelderMead{} },
		maxIter:  5000,
		maxEvals: 20000,
		tol:      1e-8,
		stall:    100,
		restarts: 2,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const feasibilityTol = 1e-10

// guard wraps the likelihood so that infeasible points and failed
// evaluations return +Inf without reaching, or escaping from, NegLogLik.
func guard(p Problem) func(x []float64) float64 {
	return func(x []float64) float64 {
		if !p.Layout.Feasible(x, feasibilityTol) {
			return math.Inf(1)
		}
		f, err := p.NegLogLik(x)
		if err != nil || math.IsNaN(f) {
			return math.Inf(1)
		}
		return f
	}
}

// Minimize runs the optimizer. Non-convergence is reported in the Result,
// not as an error.
func (e *Estimator) Minimize(p Problem) (*Result, error) {
	if p.Layout == nil || p.NegLogLik == nil {
		return nil, archerr.Configuration("problem needs a layout and a likelihood")
	}
	if len(p.Start) != p.Layout.Len() {
		return nil, archerr.InvalidParameter("starting values have length %d, want %d", len(p.Start), p.Layout.Len())
	}

	x := append([]float64(nil), p.Start...)
	repaired := false
	if !p.Layout.Feasible(x, feasibilityTol) {
		if p.Fallback != nil && len(p.Fallback) != p.Layout.Len() {
			return nil, archerr.InvalidParameter("fallback values have length %d, want %d", len(p.Fallback), p.Layout.Len())
		}
		x = p.Layout.Repair(x, p.Fallback)
		repaired = true
		if err := p.Layout.Check(x); err != nil {
			return nil, archerr.Wrap(err, "no feasible starting point")
		}
		e.logger.Warn("starting values infeasible, moved into the feasible set",
			zap.Float64s("start", p.Start),
			zap.Float64s("repaired", x))
	}

	if p.Layout.Len() == 0 {
		f, err := p.NegLogLik(x)
		if err != nil {
			return nil, err
		}
		return &Result{X: x, NegLogLik: f, Converged: true, Status: optimize.Success, Message: "no free parameters"}, nil
	}

	objective := guard(p)
	gradient := func(grad, x []float64) {
		fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
	}

	best := objective(x)
	res := &Result{X: x, NegLogLik: best, Status: optimize.NotTerminated}
	e.logger.Debug("optimizer start",
		zap.Int("params", p.Layout.Len()),
		zap.Float64("neg_loglik", best))

	var runErr error
	for attempt := 0; attempt <= e.restarts; attempt++ {
		settings := &optimize.Settings{
			MajorIterations: e.maxIter,
			FuncEvaluations: e.maxEvals,
			Converger: &optimize.FunctionConverge{
				Absolute:   e.tol,
				Iterations: e.stall,
			},
		}
		r, err := optimize.Minimize(optimize.Problem{Func: objective, Grad: gradient}, x, settings, e.method())
		runErr = err
		if r == nil {
			break
		}
		res.Iterations += r.Stats.MajorIterations
		res.FuncEvals += r.Stats.FuncEvaluations
		res.Status = r.Status

		improvement := best - r.F
		if r.F < best {
			best = r.F
			x = append([]float64(nil), r.X...)
		}
		if err != nil || r.Status.Early() {
			break
		}
		if attempt > 0 && improvement <= e.tol*(1+math.Abs(best)) {
			break
		}
	}

	res.X = x
	res.NegLogLik = best
	switch {
	case math.IsInf(best, 1):
		res.Message = "no feasible point with a finite likelihood was found"
	case runErr != nil:
		res.Message = runErr.Error()
	case res.Status.Early():
		res.Message = fmt.Sprintf("optimizer stopped early: %v", res.Status)
	case repaired:
		res.Message = "starting values violated the parameter bounds or constraints and were repaired"
	default:
		res.Converged = true
		res.Message = fmt.Sprintf("optimization terminated: %v", res.Status)
	}

	if res.Converged {
		e.logger.Debug("optimizer converged",
			zap.Stringer("status", res.Status),
			zap.Int("iterations", res.Iterations),
			zap.Int("func_evals", res.FuncEvals),
			zap.Float64("neg_loglik", best))
	} else {
		e.logger.Warn("optimizer did not converge",
			zap.String("message", res.Message),
			zap.Int("iterations", res.Iterations),
			zap.Float64("neg_loglik", best))
	}
	return res, nil
}
