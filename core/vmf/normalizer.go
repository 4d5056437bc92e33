// Package vmf implements the von Mises–Fisher distribution pieces used by
// the clustering engine: the log normalizing constant log c_d(κ), the
// concentration estimate from a mean resultant length, and the log density.
package vmf

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SmallKappa is the concentration below which the κ→0 limit of the
// normalizing constant is used.
const SmallKappa = 1e-8

// DefaultNormalizerCacheSize is the LRU capacity used by NewNormalizer when
// size <= 0.
const DefaultNormalizerCacheSize = 1024

// LogC returns log c_d(κ), the log normalizing constant of a vMF density on
// the unit sphere in R^dim:
//
//	c_d(κ) = κ^ν / ((2π)^(ν+1) · I_ν(κ)),  ν = d/2 − 1
//
// For κ below SmallKappa (including negative or NaN input) the κ→0 limit,
// the log of the reciprocal surface area of the sphere, is returned. The
// result is finite for every finite κ >= 0 and dim >= 1.
func LogC(kappa float64, dim int) float64 {
	d := float64(max(dim, 1))
	if !(kappa >= SmallKappa) {
		lg, _ := math.Lgamma(d / 2)
		return lg - math.Ln2 - (d/2)*math.Log(math.Pi)
	}

	nu := d/2 - 1
	logI := LogBesselI(nu, kappa)
	return nu*math.Log(kappa) - (nu+1)*math.Log(2*math.Pi) - logI
}

// LogDensity returns log f(x; μ, κ) given the cosine μ·x and a precomputed
// logC = LogC(κ, d).
func LogDensity(cosine, kappa, logC float64) float64 {
	return logC + kappa*cosine
}

type normKey struct {
	kappa float64
	dim   int
}

// Normalizer memoizes LogC. Clamped concentrations repeat across EM
// iterations, so the cache avoids re-summing the Bessel series for them.
// A Normalizer is safe for concurrent use.
type Normalizer struct {
	cache *lru.Cache[normKey, float64]
}

// NewNormalizer creates a Normalizer holding up to size entries.
func NewNormalizer(size int) (*Normalizer, error) {
	if size <= 0 {
		size = DefaultNormalizerCacheSize
	}
	cache, err := lru.New[normKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &Normalizer{cache: cache}, nil
}

// LogC returns the memoized log normalizing constant.
func (n *Normalizer) LogC(kappa float64, dim int) float64 {
	key := normKey{kappa: kappa, dim: dim}
	if v, ok := n.cache.Get(key); ok {
		return v
	}
	v := LogC(kappa, dim)
	n.cache.Add(key, v)
	return v
}

// Len returns the number of cached entries.
func (n *Normalizer) Len() int {
	return n.cache.Len()
}
