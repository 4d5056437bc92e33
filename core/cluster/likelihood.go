package cluster

import (
	"context"
	"math"

	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/adalundhe/vmfcluster/core/vmf"
	"gonum.org/v1/gonum/floats"
)

// Evaluate returns the mixture log-likelihood
//
//	Σ_i log Σ_k α_k · c_d(κ_k) · exp(κ_k μ_k·x_i)
//
// over the first sample points (all points when sample <= 0 or exceeds N).
// The inner sum is evaluated with log-sum-exp.
func Evaluate(ctx context.Context, points *vectormath.Matrix, comps []Component, norm *vmf.Normalizer, sample, workers int) (float64, error) {
	n, dim := points.Rows(), points.Cols()
	if sample > 0 && sample < n {
		n = sample
	}
	if n == 0 || len(comps) == 0 {
		return 0, nil
	}

	head, err := vectormath.MatrixFromData(n, dim, points.Data()[:n*dim])
	if err != nil {
		return 0, err
	}
	sims, err := vectormath.SimilarityMatrix(ctx, head, meansMatrix(comps, dim), workers)
	if err != nil {
		return 0, err
	}

	k := len(comps)
	logC := logNormalizers(comps, dim, norm)
	logW := make([]float64, k)
	for j, c := range comps {
		logW[j] = math.Log(c.Weight)
	}

	terms := make([]float64, k)
	var total float64
	for i := 0; i < n; i++ {
		for j, c := range comps {
			terms[j] = logW[j] + vmf.LogDensity(float64(sims[i*k+j]), c.Concentration, logC[j])
		}
		total += floats.LogSumExp(terms)
	}
	return total, nil
}
