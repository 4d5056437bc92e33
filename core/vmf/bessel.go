package vmf

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// besselMaxTerms bounds both series evaluations. The series peaks near
	// m ≈ x/2, so this covers arguments up to several thousand.
	besselMaxTerms = 5000

	besselRelTol = 1e-16

	// logBesselRelTol is log(besselRelTol): series terms this far below the
	// largest term no longer change the sum.
	logBesselRelTol = -36.84
)

// besselI evaluates the modified Bessel function of the first kind I_nu(x)
// for x > 0 by its power series
//
//	I_ν(x) = Σ_m (x/2)^(2m+ν) / (m! Γ(m+ν+1))
//
// ok is false when the value leaves float64 range (overflow to +Inf or
// underflow of the leading term to 0) or the series does not converge.
func besselI(nu, x float64) (value float64, ok bool) {
	lg, _ := math.Lgamma(nu + 1)
	term := math.Exp(nu*math.Log(x/2) - lg)
	if term == 0 || math.IsInf(term, 0) || math.IsNaN(term) {
		return term, false
	}

	q := x * x / 4
	sum := term
	for m := 1; m <= besselMaxTerms; m++ {
		term *= q / (float64(m) * (float64(m) + nu))
		sum += term
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return sum, false
		}
		if term <= sum*besselRelTol {
			return sum, true
		}
	}
	return sum, false
}

// logBesselISeries evaluates log I_nu(x) with the same series as besselI,
// carried out in log space so neither tail of float64 range is a problem.
func logBesselISeries(nu, x float64) (float64, bool) {
	lg, _ := math.Lgamma(nu + 1)
	logHalfX := math.Log(x / 2)
	logTerm := nu*logHalfX - lg
	logQ := 2 * logHalfX

	terms := make([]float64, 1, 64)
	terms[0] = logTerm
	peak := logTerm
	for m := 1; m <= besselMaxTerms; m++ {
		logTerm += logQ - math.Log(float64(m)) - math.Log(float64(m)+nu)
		terms = append(terms, logTerm)
		if logTerm > peak {
			peak = logTerm
			continue
		}
		// Terms are unimodal in m; once past the peak and below tolerance
		// the remaining tail is negligible.
		if logTerm-peak < logBesselRelTol {
			v := floats.LogSumExp(terms)
			return v, !math.IsNaN(v) && !math.IsInf(v, 0)
		}
	}
	return 0, false
}

// logBesselIAsymptotic is the large-argument expansion
// log I_ν(x) ≈ x − ½·log(2πx) − (4ν²−1)/(8x).
func logBesselIAsymptotic(nu, x float64) float64 {
	return x - 0.5*math.Log(2*math.Pi*x) - (4*nu*nu-1)/(8*x)
}

// LogBesselI returns log I_nu(x) for x > 0.
//
// The direct float64 series is used while it stays in range; past that the
// series is summed in log space, and only if that fails to converge is the
// asymptotic expansion used. The two series agree, so the switch between
// them is continuous.
func LogBesselI(nu, x float64) float64 {
	if v, ok := besselI(nu, x); ok {
		return math.Log(v)
	}
	if v, ok := logBesselISeries(nu, x); ok {
		return v
	}
	return logBesselIAsymptotic(nu, x)
}
