package balance

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCosts(n, k int, seed uint64) *CostMatrix {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	c := NewCostMatrix(n, k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			c.Set(i, j, rng.Float64()*10)
		}
	}
	return c
}

func mustCosts(t *testing.T, rows [][]float64) *CostMatrix {
	t.Helper()
	c, err := CostMatrixFromRows(rows)
	require.NoError(t, err)
	return c
}

func TestCostMatrixFromRows(t *testing.T) {
	c := mustCosts(t, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	assert.Equal(t, 3, c.Points())
	assert.Equal(t, 2, c.Clusters())
	assert.Equal(t, 4.0, c.At(1, 1))
	assert.Equal(t, []float64{5, 6}, c.Row(2))

	_, err := CostMatrixFromRows([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestTargetSize(t *testing.T) {
	assert.Equal(t, 3, TargetSize(10, 3))
	assert.Equal(t, 100, TargetSize(300, 3))
	assert.Equal(t, 0, TargetSize(10, 0))
}

func TestAssignExactBalance(t *testing.T) {
	testCases := []struct {
		n, k int
	}{
		{12, 3}, {120, 4}, {300, 3}, {1000, 10}, {7, 7}, {5, 1},
	}

	for _, tc := range testCases {
		for seed := uint64(0); seed < 5; seed++ {
			cost := randomCosts(tc.n, tc.k, seed)
			labels := Assign(cost, TargetSize(tc.n, tc.k))

			require.Len(t, labels, tc.n)
			for _, c := range Counts(labels, tc.k) {
				assert.Equal(t, tc.n/tc.k, c, "n=%d k=%d seed=%d", tc.n, tc.k, seed)
			}
		}
	}
}

func TestAssignTenPointsThreeClusters(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		labels := Assign(randomCosts(10, 3, seed), TargetSize(10, 3))

		counts := Counts(labels, 3)
		slices.Sort(counts)
		assert.Equal(t, []int{3, 3, 4}, counts, "seed=%d", seed)
	}
}

func TestAssignRemainderBounds(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		n, k := 103, 7
		target := TargetSize(n, k)

		plain := Counts(Assign(randomCosts(n, k, seed), target), k)
		capped := Counts(Assign(randomCosts(n, k, seed), target, WithRemainderCap()), k)

		var plainSum, cappedSum int
		for j := 0; j < k; j++ {
			assert.GreaterOrEqual(t, plain[j], target)
			assert.GreaterOrEqual(t, capped[j], target)
			assert.LessOrEqual(t, capped[j], target+1)
			plainSum += plain[j]
			cappedSum += capped[j]
		}
		assert.Equal(t, n, plainSum)
		assert.Equal(t, n, cappedSum)
	}
}

func TestAssignEveryPointOnce(t *testing.T) {
	labels := Assign(randomCosts(50, 6, 9), TargetSize(50, 6))
	for i, l := range labels {
		assert.True(t, l >= 0 && l < 6, "point %d has label %d", i, l)
	}
}

func TestAssignPrefersCheapestPairs(t *testing.T) {
	cost := mustCosts(t, [][]float64{
		{0.1, 0.9},
		{0.2, 0.8},
		{0.3, 0.4},
		{0.7, 0.6},
	})

	// Points 0 and 1 fill cluster 0; point 2 would rather join cluster 0
	// but it is full.
	assert.Equal(t, []int{0, 0, 1, 1}, Assign(cost, 2))
}

func TestAssignTieBreakByFlattenedIndex(t *testing.T) {
	cost := NewCostMatrix(6, 3)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2}, Assign(cost, 2))
}

func TestAssignDeterministic(t *testing.T) {
	cost := randomCosts(200, 9, 3)
	first := Assign(cost, TargetSize(200, 9))
	for range 5 {
		assert.Equal(t, first, Assign(cost, TargetSize(200, 9)))
	}
}

// Leftovers that share a cheapest cluster all land there, so a cluster can
// exceed targetSize+1 unless the remainder is capped.
func TestAssignRemainderPileUp(t *testing.T) {
	rows := [][]float64{
		{0, 5, 5},
		{1, 2, 9},
		{1, 9, 3},
		{1, 9, 9},
		{1, 9, 9},
	}

	labels := Assign(mustCosts(t, rows), TargetSize(5, 3))
	assert.Equal(t, []int{0, 1, 2, 0, 0}, labels)
	assert.Equal(t, []int{3, 1, 1}, Counts(labels, 3))

	capped := Assign(mustCosts(t, rows), TargetSize(5, 3), WithRemainderCap())
	assert.Equal(t, []int{0, 1, 2, 0, 1}, capped)
	assert.Equal(t, []int{2, 2, 1}, Counts(capped, 3))
}

func TestAssignCappedRemainderWithRand(t *testing.T) {
	rows := [][]float64{
		{0, 5, 5},
		{1, 2, 9},
		{1, 9, 3},
		{1, 9, 9},
		{1, 9, 9},
	}

	for seed := uint64(0); seed < 10; seed++ {
		rng := rand.New(rand.NewPCG(seed, 0))
		labels := Assign(mustCosts(t, rows), 1, WithRemainderCap(), WithRand(rng))

		assert.Equal(t, []int{0, 1, 2}, labels[:3])
		assert.ElementsMatch(t, []int{0, 1}, labels[3:])
	}
}

func TestAssignMoreClustersThanPoints(t *testing.T) {
	cost := mustCosts(t, [][]float64{
		{3, 1, 2, 5},
		{3, 1, 2, 5},
	})

	assert.Equal(t, []int{1, 1}, Assign(cost, TargetSize(2, 4)))
	assert.Equal(t, []int{1, 2}, Assign(cost, TargetSize(2, 4), WithRemainderCap()))
}

func TestAssignEmpty(t *testing.T) {
	assert.Empty(t, Assign(NewCostMatrix(0, 3), 0))
	assert.Equal(t, []int{Unassigned, Unassigned}, Assign(NewCostMatrix(2, 0), 0))
}

func TestCountsIgnoresOutOfRange(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Counts([]int{0, 1, 1, -1, 5}, 2))
}
