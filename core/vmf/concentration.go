package vmf

import "math"

const (
	// MinConcentration and MaxConcentration bound every estimated κ. The
	// upper bound keeps log c_d(κ) and κ·cosine well inside float64 range in
	// later iterations.
	MinConcentration = 0.01
	MaxConcentration = 1000.0

	maxResultantLength = 0.999999
	minDenominator     = 1e-8
)

// EstimateConcentration converts a mean resultant length r̄ into a vMF
// concentration using the Banerjee et al. (2005) approximation
//
//	κ ≈ (r̄·d − r̄³) / (1 − r̄²)
//
// r̄ is clamped to [0, 0.999999] and the result to
// [MinConcentration, MaxConcentration].
func EstimateConcentration(rbar float64, dim int) float64 {
	if math.IsNaN(rbar) || rbar < 0 {
		rbar = 0
	}
	rbar = math.Min(rbar, maxResultantLength)

	d := float64(dim)
	denom := math.Max(1-rbar*rbar, minDenominator)
	kappa := (rbar*d - rbar*rbar*rbar) / denom

	return ClampConcentration(kappa)
}

// ClampConcentration limits kappa to [MinConcentration, MaxConcentration].
// NaN maps to MinConcentration.
func ClampConcentration(kappa float64) float64 {
	if math.IsNaN(kappa) {
		return MinConcentration
	}
	return math.Min(math.Max(kappa, MinConcentration), MaxConcentration)
}
