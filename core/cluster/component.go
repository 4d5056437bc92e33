package cluster

import (
	"fmt"

	"github.com/adalundhe/vmfcluster/core/vectormath"
)

// Component holds the parameters of one vMF mixture component.
type Component struct {
	// Mean is the unit mean direction μ.
	Mean []float32
	// Concentration is κ, kept in [vmf.MinConcentration, vmf.MaxConcentration]
	// after every M-step.
	Concentration float64
	// Weight is the mixing coefficient α. Weights sum to 1.
	Weight float64
}

// meansMatrix packs the mean directions into a K×D matrix for GEMM.
func meansMatrix(comps []Component, dim int) *vectormath.Matrix {
	m := vectormath.NewMatrix(len(comps), dim)
	for j, c := range comps {
		m.SetRow(j, c.Mean)
	}
	return m
}

// State is the lifecycle state of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateSeeded
	StateIterating
	StateConverged
	StateMaxIterationsReached
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSeeded:
		return "seeded"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateMaxIterationsReached:
		return "max_iterations_reached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether s is a final state of a fit.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateMaxIterationsReached
}
