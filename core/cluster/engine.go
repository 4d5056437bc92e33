// Package cluster fits a balanced mixture of von Mises–Fisher distributions
// to unit-norm vectors.
//
// Each EM iteration replaces the usual E-step with a capacity-constrained
// assignment (see package balance) so every cluster receives floor(N/K)
// points, then re-estimates mean direction, concentration and mixing weight
// per cluster and scores the mixture log-likelihood for the convergence
// test.
//
// # Usage
//
//	points, _ := vectormath.MatrixFromRows(vectors) // unit-norm rows
//	engine, _ := cluster.New(cluster.DefaultConfig(8))
//	result, err := engine.Fit(ctx, points)
//	// result.Labels, result.Components, result.History, result.State
package cluster

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/adalundhe/vmfcluster/core/balance"
	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/adalundhe/vmfcluster/core/vmf"
)

// Result is the outcome of Engine.Fit.
type Result struct {
	// Labels holds one cluster index per input point.
	Labels []int
	// Components holds the fitted parameters, indexed by label.
	Components []Component
	// History is the log-likelihood after each iteration of the returned run.
	History []float64
	// State is StateConverged or StateMaxIterationsReached.
	State State
	// Iterations is the number of EM iterations of the returned run.
	Iterations int
	// Restart is the index of the restart that produced this result.
	Restart int
}

// LogLikelihood returns the final log-likelihood, or -Inf with no history.
func (r *Result) LogLikelihood() float64 {
	if len(r.History) == 0 {
		return math.Inf(-1)
	}
	return r.History[len(r.History)-1]
}

// Counts returns the number of points per cluster.
func (r *Result) Counts() []int {
	return balance.Counts(r.Labels, len(r.Components))
}

// Means returns the mean directions as a K×D matrix.
func (r *Result) Means() *vectormath.Matrix {
	if len(r.Components) == 0 {
		return vectormath.NewMatrix(0, 0)
	}
	return meansMatrix(r.Components, len(r.Components[0].Mean))
}

// Engine runs one balanced vMF fit. An Engine is single use.
type Engine struct {
	cfg   Config
	norm  *vmf.Normalizer
	state State
}

// New creates an Engine. Zero fields of cfg take their defaults.
func New(cfg Config) (*Engine, error) {
	if cfg.K < 1 {
		return nil, newValidationError(-1, float64(cfg.K), ErrInvalidK)
	}
	norm, err := vmf.NewNormalizer(vmf.DefaultNormalizerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg.normalize(), norm: norm}, nil
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Fit clusters points, whose rows must be unit-norm.
//
// Invalid input yields a *ValidationError before any work is done. Failing
// to meet the tolerance within MaxIterations is not an error: the result
// carries StateMaxIterationsReached. Only cancellation of ctx interrupts a
// fit that passed validation.
func (e *Engine) Fit(ctx context.Context, points *vectormath.Matrix) (*Result, error) {
	if e.state != StateUninitialized {
		return nil, ErrEngineUsed
	}
	if err := e.validate(points); err != nil {
		return nil, err
	}

	logger := e.cfg.Logger.With("k", e.cfg.K, "points", points.Rows(), "dimension", points.Cols())

	var best *Result
	for r := 0; r < e.cfg.Restarts; r++ {
		res, err := e.run(ctx, points, logger.With("restart", r))
		if err != nil {
			return nil, err
		}
		res.Restart = r
		if best == nil || res.LogLikelihood() > best.LogLikelihood() {
			best = res
		}
	}

	e.state = best.State
	logger.Info("balanced vMF fit complete",
		"state", best.State.String(),
		"iterations", best.Iterations,
		"restart", best.Restart,
		"log_likelihood", best.LogLikelihood(),
	)
	return best, nil
}

func (e *Engine) validate(points *vectormath.Matrix) error {
	if points == nil || points.Rows() == 0 {
		return newValidationError(-1, 0, ErrEmptyInput)
	}
	if points.Cols() == 0 {
		return newValidationError(-1, 0, ErrInvalidDimension)
	}
	if e.cfg.K > points.Rows() {
		return newValidationError(-1, float64(e.cfg.K), ErrInvalidK)
	}
	if row, norm, ok := points.CheckUnit(e.cfg.UnitTolerance); !ok {
		return newValidationError(row, norm, ErrNotUnitNorm)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, points *vectormath.Matrix, logger *slog.Logger) (*Result, error) {
	cfg := e.cfg
	comps := Seed(points, cfg.K, cfg.Rand)
	e.state = StateSeeded

	target := balance.TargetSize(points.Rows(), cfg.K)
	var opts []balance.Option
	if cfg.CapRemainder {
		opts = append(opts, balance.WithRemainderCap(), balance.WithRand(cfg.Rand))
	}

	res := &Result{
		History: make([]float64, 0, min(cfg.MaxIterations, 64)),
		State:   StateMaxIterationsReached,
	}

	e.state = StateIterating
	for it := 1; it <= cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cost, err := BuildCosts(ctx, points, comps, e.norm, cfg.Workers)
		if err != nil {
			return nil, err
		}
		res.Labels = balance.Assign(cost, target, opts...)

		report, err := Update(ctx, points, res.Labels, comps, cfg.Workers, logger)
		if err != nil {
			return nil, err
		}

		ll, err := Evaluate(ctx, points, comps, e.norm, cfg.LikelihoodSample, cfg.Workers)
		if err != nil {
			return nil, err
		}
		res.History = append(res.History, ll)
		res.Iterations = it

		logger.Debug("em iteration",
			"iteration", it,
			"log_likelihood", ll,
			"repaired", len(report.Repaired),
		)

		if h := res.History; len(h) > 1 && math.Abs(h[len(h)-1]-h[len(h)-2]) < cfg.Tolerance {
			res.State = StateConverged
			break
		}
	}

	res.Components = comps
	return res, nil
}

// Fit is a convenience wrapper: a fresh Engine with DefaultConfig(k) and the
// given iteration cap and tolerance.
func Fit(ctx context.Context, points *vectormath.Matrix, k, maxIterations int, tolerance float64) (*Result, error) {
	cfg := DefaultConfig(k)
	cfg.MaxIterations = maxIterations
	cfg.Tolerance = tolerance
	engine, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return engine.Fit(ctx, points)
}

// FitWithRand is Fit with a caller-supplied generator, for reproducible
// seeding.
func FitWithRand(ctx context.Context, points *vectormath.Matrix, k, maxIterations int, tolerance float64, rng *rand.Rand) (*Result, error) {
	cfg := DefaultConfig(k)
	cfg.MaxIterations = maxIterations
	cfg.Tolerance = tolerance
	cfg.Rand = rng
	engine, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return engine.Fit(ctx, points)
}
