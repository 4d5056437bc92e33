package cluster

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+7))
}

// sampleVMF draws one point from vMF(mu, kappa) with Wood's (1994)
// rejection sampler.
func sampleVMF(mu []float64, kappa float64, rng *rand.Rand) []float32 {
	d := float64(len(mu))
	b := (-2*kappa + math.Sqrt(4*kappa*kappa+(d-1)*(d-1))) / (d - 1)
	x0 := (1 - b) / (1 + b)
	c := kappa*x0 + (d-1)*math.Log(1-x0*x0)
	beta := distuv.Beta{Alpha: (d - 1) / 2, Beta: (d - 1) / 2, Src: rng}

	var w float64
	for {
		z := beta.Rand()
		w = (1 - (1+b)*z) / (1 - (1-b)*z)
		if kappa*w+(d-1)*math.Log(1-x0*w)-c >= math.Log(rng.Float64()) {
			break
		}
	}

	// Random direction orthogonal to mu.
	v := make([]float64, len(mu))
	var dot float64
	for i := range v {
		v[i] = rng.NormFloat64()
		dot += v[i] * mu[i]
	}
	var norm float64
	for i := range v {
		v[i] -= dot * mu[i]
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(mu))
	s := math.Sqrt(1 - w*w)
	for i := range out {
		out[i] = float32(w*mu[i] + s*v[i]/norm)
	}
	vectormath.Normalize(out)
	return out
}

func basisVector(dim, axis int) []float64 {
	v := make([]float64, dim)
	v[axis] = 1
	return v
}

// separatedMixture returns perCluster vMF samples around each of the first
// k basis vectors, grouped by cluster.
func separatedMixture(t *testing.T, k, perCluster, dim int, kappa float64, seed uint64) (*vectormath.Matrix, [][]float64) {
	t.Helper()
	rng := testRand(seed)
	centers := make([][]float64, k)
	rows := make([][]float32, 0, k*perCluster)
	for c := 0; c < k; c++ {
		centers[c] = basisVector(dim, c)
		for range perCluster {
			rows = append(rows, sampleVMF(centers[c], kappa, rng))
		}
	}
	m, err := vectormath.MatrixFromRows(rows)
	require.NoError(t, err)
	return m, centers
}

func randomUnitMatrix(t *testing.T, n, dim int, seed uint64) *vectormath.Matrix {
	t.Helper()
	rng := testRand(seed)
	rows := make([][]float32, n)
	for i := range rows {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(rng.NormFloat64())
		}
		require.True(t, vectormath.Normalize(v))
		rows[i] = v
	}
	m, err := vectormath.MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

func mustMatrix(t *testing.T, rows [][]float32) *vectormath.Matrix {
	t.Helper()
	m, err := vectormath.MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

func cosine64(a []float32, b []float64) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * b[i]
	}
	return s
}
