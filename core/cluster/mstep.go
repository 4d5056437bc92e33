package cluster

import (
	"context"
	"log/slog"

	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/adalundhe/vmfcluster/core/vmf"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// minResultant is the resultant length below which a mean direction is
// left unchanged.
const minResultant = 1e-8

// UpdateReport summarizes one M-step.
type UpdateReport struct {
	// Sizes is the member count per cluster, including repair moves.
	Sizes []int
	// Repaired lists clusters that were empty and reseeded.
	Repaired []int
}

// Update recomputes every component from the current labels, in place.
//
// For cluster k with members S_k: μ_k = Σx/‖Σx‖, κ_k from the mean
// resultant length ‖Σx‖/|S_k|, α_k = |S_k|/N. Clusters are processed
// concurrently; each writes only its own component. Empty clusters are
// then reseeded from the farthest member of the largest cluster, and the
// weights are renormalized to sum to 1.
func Update(ctx context.Context, points *vectormath.Matrix, labels []int, comps []Component, workers int, logger *slog.Logger) (UpdateReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	k := len(comps)
	members := make([][]int, k)
	for i, l := range labels {
		if l >= 0 && l < k {
			members[l] = append(members[l], i)
		}
	}

	n := points.Rows()
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for j := range comps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			updateComponent(points, members[j], &comps[j], n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return UpdateReport{}, err
	}

	report := UpdateReport{Sizes: make([]int, k)}
	for j := range members {
		report.Sizes[j] = len(members[j])
	}
	report.Repaired = repairEmpty(points, members, comps, report.Sizes, logger)

	var total float64
	for _, c := range comps {
		total += c.Weight
	}
	if total > 0 {
		for j := range comps {
			comps[j].Weight /= total
		}
	}
	return report, nil
}

func updateComponent(points *vectormath.Matrix, idx []int, comp *Component, n int) {
	if len(idx) == 0 {
		comp.Weight = 0
		return
	}

	dim := points.Cols()
	sum := make([]float64, dim)
	for _, i := range idx {
		for d, x := range points.Row(i) {
			sum[d] += float64(x)
		}
	}

	r := floats.Norm(sum, 2)
	if r > minResultant {
		for d := range comp.Mean {
			comp.Mean[d] = float32(sum[d] / r)
		}
		vectormath.Normalize(comp.Mean)
	}

	size := float64(len(idx))
	comp.Concentration = vmf.EstimateConcentration(r/size, dim)
	comp.Weight = size / float64(n)
}

// repairEmpty moves, for each empty cluster, the member of the currently
// largest cluster that is least similar to that cluster's mean. The move is
// conceptual: labels are untouched, the empty cluster takes the point as
// its mean and half the donor's concentration. sizes is updated in place.
func repairEmpty(points *vectormath.Matrix, members [][]int, comps []Component, sizes []int, logger *slog.Logger) []int {
	var empty []int
	for j, m := range members {
		if len(m) == 0 {
			empty = append(empty, j)
		}
	}
	if len(empty) == 0 {
		return nil
	}

	n := points.Rows()
	donated := make(map[int]bool)
	var repaired []int
	for _, e := range empty {
		donor := 0
		for j := range sizes {
			if sizes[j] > sizes[donor] {
				donor = j
			}
		}
		if sizes[donor] < 2 {
			logger.Info("empty cluster left unrepaired: no cluster can donate a point",
				"cluster", e,
			)
			continue
		}

		far := -1
		var farSim float32
		for _, i := range members[donor] {
			if donated[i] {
				continue
			}
			s := vectormath.Similarity(points.Row(i), comps[donor].Mean)
			if far < 0 || s < farSim {
				far, farSim = i, s
			}
		}
		if far < 0 {
			continue
		}

		donated[far] = true
		copy(comps[e].Mean, points.Row(far))
		comps[e].Concentration = vmf.ClampConcentration(comps[donor].Concentration / 2)
		sizes[donor]--
		sizes[e] = 1
		comps[donor].Weight = float64(sizes[donor]) / float64(n)
		comps[e].Weight = 1 / float64(n)
		repaired = append(repaired, e)

		logger.Info("empty cluster repaired",
			"cluster", e,
			"donor", donor,
			"point", far,
			"similarity", farSim,
		)
	}
	return repaired
}
