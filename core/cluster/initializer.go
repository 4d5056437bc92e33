package cluster

import (
	"math/rand/v2"

	"github.com/adalundhe/vmfcluster/core/vectormath"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// initialConcentration is κ for every freshly seeded component.
const initialConcentration = 1.0

// Seed picks k initial mean directions with k-means++ adapted to the
// sphere. The first center is a uniform draw; each following center is
// drawn with probability proportional to (1 − s)², where s is the point's
// cosine similarity to its nearest already-chosen center. Concentrations
// start at 1 and weights at 1/k.
func Seed(points *vectormath.Matrix, k int, rng *rand.Rand) []Component {
	n := points.Rows()
	comps := make([]Component, 0, k)
	if n == 0 || k <= 0 {
		return comps
	}

	add := func(idx int) {
		mean := make([]float32, points.Cols())
		copy(mean, points.Row(idx))
		comps = append(comps, Component{
			Mean:          mean,
			Concentration: initialConcentration,
			Weight:        1 / float64(k),
		})
	}

	add(rng.IntN(n))

	// Similarity to the nearest chosen center, updated as centers are added.
	nearest := make([]float32, n)
	weights := make([]float64, n)
	for i := range nearest {
		nearest[i] = -1
	}

	for len(comps) < k {
		last := comps[len(comps)-1].Mean
		for i := 0; i < n; i++ {
			if s := vectormath.Similarity(points.Row(i), last); s > nearest[i] {
				nearest[i] = s
			}
			d := 1 - float64(min(nearest[i], 1))
			weights[i] = d * d
		}

		idx, ok := sampleuv.NewWeighted(weights, rng).Take()
		if !ok {
			// Every point coincides with a chosen center.
			idx = rng.IntN(n)
		}
		add(idx)
	}
	return comps
}
