// Package vectormath provides the dense float32 primitives used by the
// clustering engine: dot products, norms, normalization, and batched
// similarity between a point set and a set of mean directions.
package vectormath

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Dot returns a·b. Both slices must have the same length.
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Similarity is the cosine similarity of two unit vectors.
func Similarity(a, b []float32) float32 {
	return Dot(a, b)
}

// Normalize scales v to unit length in place.
// Returns false and leaves v untouched if its norm is zero or not finite.
func Normalize(v []float32) bool {
	n := Norm(v)
	if n == 0 || math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		return false
	}
	vek32.MulNumber_Inplace(v, 1/n)
	return true
}

// Norm64 returns the Euclidean norm of v accumulated in float64.
func Norm64(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsUnit reports whether |‖v‖ - 1| <= tol.
func IsUnit(v []float32, tol float64) bool {
	return math.Abs(Norm64(v)-1) <= tol
}
