package balance

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// Unassigned marks a point that has no cluster yet.
const Unassigned = -1

type options struct {
	capRemainder bool
	rng          *rand.Rand
}

// Option configures Assign.
type Option func(*options)

// WithRemainderCap restricts the N mod K leftover points to clusters that
// are still at the target size, so no cluster ends with more than
// targetSize+1 members. Without it every leftover simply takes its
// cheapest cluster and several leftovers may pile onto the same one.
func WithRemainderCap() Option {
	return func(o *options) {
		o.capRemainder = true
	}
}

// WithRand sets the generator used to order leftover points when the
// remainder is capped. Without it leftovers are visited by point index.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// TargetSize returns floor(n/k), the per-cluster capacity of a balanced run.
func TargetSize(n, k int) int {
	if k <= 0 {
		return 0
	}
	return n / k
}

// Assign labels every point with a cluster so that each cluster receives
// targetSize points, cheapest (point, cluster) pairs first.
//
// All N·K pairs are sorted by ascending cost, ties broken by flattened
// index i*K+j, and walked once: a pair is taken if its point is still free
// and its cluster is below targetSize. Points left over once every cluster
// is full (the N mod K remainder) go to their cheapest cluster without a
// capacity check unless WithRemainderCap is given.
//
// The walk is sequential: occupancy must be updated in strict cost order
// for the result to be well defined. Assign is deterministic for a fixed
// cost matrix and options.
func Assign(cost *CostMatrix, targetSize int, opts ...Option) []int {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	n, k := cost.n, cost.k
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Unassigned
	}
	if n == 0 || k == 0 {
		return labels
	}

	occupancy := make([]int, k)
	assigned := 0

	if targetSize > 0 {
		order := make([]int, n*k)
		for f := range order {
			order[f] = f
		}
		slices.SortFunc(order, func(a, b int) int {
			if c := cmp.Compare(cost.data[a], cost.data[b]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		for _, f := range order {
			if assigned == n {
				break
			}
			i, j := f/k, f%k
			if labels[i] != Unassigned || occupancy[j] >= targetSize {
				continue
			}
			labels[i] = j
			occupancy[j]++
			assigned++
		}
	}

	if assigned == n {
		return labels
	}

	leftovers := make([]int, 0, n-assigned)
	for i, l := range labels {
		if l == Unassigned {
			leftovers = append(leftovers, i)
		}
	}
	if o.capRemainder && o.rng != nil {
		o.rng.Shuffle(len(leftovers), func(a, b int) {
			leftovers[a], leftovers[b] = leftovers[b], leftovers[a]
		})
	}

	for _, i := range leftovers {
		j := -1
		if o.capRemainder {
			j = argminBelow(cost.Row(i), occupancy, targetSize+1)
		}
		if j < 0 {
			j = argmin(cost.Row(i))
		}
		labels[i] = j
		occupancy[j]++
	}
	return labels
}

func argmin(row []float64) int {
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] < row[best] {
			best = j
		}
	}
	return best
}

// argminBelow is argmin restricted to clusters with occupancy < limit.
// Returns -1 if every cluster is at the limit.
func argminBelow(row []float64, occupancy []int, limit int) int {
	best := -1
	for j, c := range row {
		if occupancy[j] >= limit {
			continue
		}
		if best < 0 || c < row[best] {
			best = j
		}
	}
	return best
}

// Counts returns the number of points carrying each label in [0, k).
// Labels outside that range are ignored.
func Counts(labels []int, k int) []int {
	counts := make([]int, k)
	for _, l := range labels {
		if l >= 0 && l < k {
			counts[l]++
		}
	}
	return counts
}
