package cluster

import (
	"context"

	"github.com/adalundhe/vmfcluster/core/balance"
	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/adalundhe/vmfcluster/core/vmf"
)

// logNormalizers returns log c_d(κ_j) for every component.
func logNormalizers(comps []Component, dim int, norm *vmf.Normalizer) []float64 {
	out := make([]float64, len(comps))
	for j, c := range comps {
		if norm != nil {
			out[j] = norm.LogC(c.Concentration, dim)
		} else {
			out[j] = vmf.LogC(c.Concentration, dim)
		}
	}
	return out
}

// BuildCosts returns the N×K matrix of negative vMF log-densities
// −(log c_d(κ_j) + κ_j·μ_j·x_i).
func BuildCosts(ctx context.Context, points *vectormath.Matrix, comps []Component, norm *vmf.Normalizer, workers int) (*balance.CostMatrix, error) {
	dim := points.Cols()
	sims, err := vectormath.SimilarityMatrix(ctx, points, meansMatrix(comps, dim), workers)
	if err != nil {
		return nil, err
	}

	n, k := points.Rows(), len(comps)
	logC := logNormalizers(comps, dim, norm)
	cost := balance.NewCostMatrix(n, k)
	for i := 0; i < n; i++ {
		row := cost.Row(i)
		for j, c := range comps {
			row[j] = -vmf.LogDensity(float64(sims[i*k+j]), c.Concentration, logC[j])
		}
	}
	return cost, nil
}
