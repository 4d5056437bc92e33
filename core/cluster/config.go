package cluster

import (
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"
)

const (
	// DefaultMaxIterations caps EM iterations per restart.
	DefaultMaxIterations = 100

	// DefaultTolerance is the absolute log-likelihood change below which a
	// run counts as converged.
	DefaultTolerance = 1e-4

	// DefaultLikelihoodSample is how many points the convergence check
	// scores. The full set is only scored when it is smaller.
	DefaultLikelihoodSample = 1000

	// DefaultUnitTolerance is the allowed deviation of ‖x‖ from 1.
	DefaultUnitTolerance = 1e-6
)

// Config configures an Engine.
type Config struct {
	// K is the number of clusters.
	K int

	// MaxIterations is the EM iteration cap for each restart.
	// Default: DefaultMaxIterations
	MaxIterations int

	// Tolerance stops a run once |ΔlogLikelihood| < Tolerance.
	// Default: DefaultTolerance
	Tolerance float64

	// Restarts is the number of independently seeded runs. The run with the
	// highest final log-likelihood is returned.
	// Default: 1
	Restarts int

	// LikelihoodSample bounds the number of points scored per iteration.
	// Negative scores every point.
	// Default: DefaultLikelihoodSample
	LikelihoodSample int

	// UnitTolerance is the allowed |‖x‖ − 1| for input points.
	// Default: DefaultUnitTolerance
	UnitTolerance float64

	// CapRemainder keeps every cluster within targetSize+1 when N mod K != 0.
	// Off by default: leftovers take their cheapest cluster.
	CapRemainder bool

	// Workers bounds the goroutines used by the data-parallel steps.
	// Default: runtime.GOMAXPROCS(0)
	Workers int

	// Seed seeds the generator when Rand is nil. 0 = use current time.
	Seed uint64

	// Rand is the generator used for seeding and remainder ordering. It
	// takes precedence over Seed.
	Rand *rand.Rand

	// Logger receives iteration and repair events. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the defaults for k clusters.
func DefaultConfig(k int) Config {
	return Config{
		K:                k,
		MaxIterations:    DefaultMaxIterations,
		Tolerance:        DefaultTolerance,
		Restarts:         1,
		LikelihoodSample: DefaultLikelihoodSample,
		UnitTolerance:    DefaultUnitTolerance,
	}
}

// normalize fills zero fields with defaults.
func (c Config) normalize() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Restarts <= 0 {
		c.Restarts = 1
	}
	if c.LikelihoodSample == 0 {
		c.LikelihoodSample = DefaultLikelihoodSample
	}
	if c.UnitTolerance <= 0 {
		c.UnitTolerance = DefaultUnitTolerance
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Rand == nil {
		seed := c.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		c.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
