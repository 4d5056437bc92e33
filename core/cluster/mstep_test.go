package cluster

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/adalundhe/vmfcluster/core/vectormath"
	"github.com/adalundhe/vmfcluster/core/vmf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quarterArc(t *testing.T) *vectormath.Matrix {
	t.Helper()
	return mustMatrix(t, [][]float32{
		{1, 0},
		{0.8, 0.6},
		{0.6, 0.8},
		{0.28, 0.96},
	})
}

func freshComponents(k, dim int) []Component {
	comps := make([]Component, k)
	for j := range comps {
		comps[j] = Component{
			Mean:          make([]float32, dim),
			Concentration: 1,
			Weight:        1 / float64(k),
		}
		comps[j].Mean[j%dim] = 1
	}
	return comps
}

func TestUpdateSingleCluster(t *testing.T) {
	points := quarterArc(t)
	comps := freshComponents(1, 2)

	report, err := Update(context.Background(), points, []int{0, 0, 0, 0}, comps, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{4}, report.Sizes)
	assert.Empty(t, report.Repaired)

	sumX, sumY := 1+0.8+0.6+0.28, 0+0.6+0.8+0.96
	r := math.Hypot(sumX, sumY)
	assert.InDelta(t, sumX/r, comps[0].Mean[0], 1e-6)
	assert.InDelta(t, sumY/r, comps[0].Mean[1], 1e-6)
	assert.InDelta(t, vmf.EstimateConcentration(r/4, 2), comps[0].Concentration, 1e-3)
	assert.InDelta(t, 1.0, comps[0].Weight, 1e-12)
}

func TestUpdateRepairsEmptyCluster(t *testing.T) {
	points := quarterArc(t)
	comps := freshComponents(2, 2)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	report, err := Update(context.Background(), points, []int{0, 0, 0, 0}, comps, 0, logger)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, report.Repaired)
	assert.Equal(t, []int{3, 1}, report.Sizes)

	// (1, 0) is the member farthest from the donor's mean.
	assert.Equal(t, []float32{1, 0}, comps[1].Mean)
	assert.Equal(t, vmf.ClampConcentration(comps[0].Concentration/2), comps[1].Concentration)

	assert.InDelta(t, 0.75, comps[0].Weight, 1e-12)
	assert.InDelta(t, 0.25, comps[1].Weight, 1e-12)
	for _, c := range comps {
		assert.InDelta(t, 1.0, vectormath.Norm64(c.Mean), 1e-6)
	}

	assert.Contains(t, buf.String(), "empty cluster repaired")
	assert.Contains(t, buf.String(), "donor=0")
}

func TestUpdateLeavesEmptyClusterWithoutDonor(t *testing.T) {
	points := mustMatrix(t, [][]float32{{0, 1}})
	comps := freshComponents(2, 2)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	report, err := Update(context.Background(), points, []int{0}, comps, 1, logger)
	require.NoError(t, err)

	assert.Empty(t, report.Repaired)
	assert.Equal(t, []int{1, 0}, report.Sizes)
	assert.InDelta(t, 1.0, comps[0].Weight, 1e-12)
	assert.Zero(t, comps[1].Weight)
	assert.Contains(t, buf.String(), "empty cluster left unrepaired")
}

func TestUpdateKeepsMeanForZeroResultant(t *testing.T) {
	points := mustMatrix(t, [][]float32{{1, 0}, {-1, 0}})
	comps := freshComponents(2, 2)
	before := append([]float32(nil), comps[0].Mean...)

	report, err := Update(context.Background(), points, []int{0, 0}, comps[:1], 1, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, report.Sizes)
	assert.Equal(t, before, comps[0].Mean)
	assert.Equal(t, vmf.MinConcentration, comps[0].Concentration)
}

func TestUpdateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Update(ctx, quarterArc(t), []int{0, 0, 1, 1}, freshComponents(2, 2), 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateSingleComponent(t *testing.T) {
	points := quarterArc(t)
	comps := []Component{{Mean: []float32{1, 0}, Concentration: 2, Weight: 1}}
	logC := vmf.LogC(2, 2)

	ll, err := Evaluate(context.Background(), points, comps, nil, -1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4*logC+2*(1+0.8+0.6+0.28), ll, 1e-5)

	ll, err = Evaluate(context.Background(), points, comps, nil, 2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2*logC+2*(1+0.8), ll, 1e-5)
}

func TestEvaluateMixture(t *testing.T) {
	points := quarterArc(t)
	comps := []Component{
		{Mean: []float32{1, 0}, Concentration: 5, Weight: 0.3},
		{Mean: []float32{0, 1}, Concentration: 50, Weight: 0.7},
	}
	norm, err := vmf.NewNormalizer(8)
	require.NoError(t, err)

	var want float64
	for i := 0; i < points.Rows(); i++ {
		x := points.Row(i)
		var p float64
		for _, c := range comps {
			cos := float64(vectormath.Dot(x, c.Mean))
			p += c.Weight * math.Exp(vmf.LogC(c.Concentration, 2)+c.Concentration*cos)
		}
		want += math.Log(p)
	}

	got, err := Evaluate(context.Background(), points, comps, norm, 0, 2)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-4)
	assert.Equal(t, 2, norm.Len())
}

func TestBuildCosts(t *testing.T) {
	points := quarterArc(t)
	comps := []Component{
		{Mean: []float32{1, 0}, Concentration: 3, Weight: 0.5},
		{Mean: []float32{0, 1}, Concentration: 7, Weight: 0.5},
	}

	cost, err := BuildCosts(context.Background(), points, comps, nil, 1)
	require.NoError(t, err)
	require.Equal(t, 4, cost.Points())
	require.Equal(t, 2, cost.Clusters())

	for i := 0; i < 4; i++ {
		for j, c := range comps {
			cos := float64(vectormath.Dot(points.Row(i), c.Mean))
			want := -(vmf.LogC(c.Concentration, 2) + c.Concentration*cos)
			assert.InDelta(t, want, cost.At(i, j), 1e-5, "point %d cluster %d", i, j)
		}
	}
}

func TestSeedDeterministic(t *testing.T) {
	points := randomUnitMatrix(t, 50, 6, 3)

	a := Seed(points, 4, testRand(10))
	b := Seed(points, 4, testRand(10))
	require.Len(t, a, 4)
	for j := range a {
		assert.Equal(t, a[j].Mean, b[j].Mean)
	}
}

func TestSeedPicksInputPoints(t *testing.T) {
	points := randomUnitMatrix(t, 25, 5, 8)
	comps := Seed(points, 5, testRand(2))

	seen := make(map[int]bool)
	for _, c := range comps {
		assert.Equal(t, 1.0, c.Concentration)
		assert.InDelta(t, 0.2, c.Weight, 1e-12)

		idx := -1
		for i := 0; i < points.Rows(); i++ {
			if assert.ObjectsAreEqual(points.Row(i), c.Mean) {
				idx = i
				break
			}
		}
		require.GreaterOrEqual(t, idx, 0)
		assert.False(t, seen[idx], "point %d chosen twice", idx)
		seen[idx] = true
	}
}

func TestSeedSpreadsAcrossSeparatedClusters(t *testing.T) {
	points, centers := separatedMixture(t, 3, 30, 8, 200, 4)
	comps := Seed(points, 3, testRand(1))

	hit := make([]bool, len(centers))
	for _, c := range comps {
		for j, center := range centers {
			if cosine64(c.Mean, center) > 0.8 {
				hit[j] = true
			}
		}
	}
	assert.Equal(t, []bool{true, true, true}, hit)
}

func TestSeedIdenticalPoints(t *testing.T) {
	rows := make([][]float32, 6)
	for i := range rows {
		rows[i] = []float32{0, 1, 0}
	}
	comps := Seed(mustMatrix(t, rows), 3, testRand(1))

	require.Len(t, comps, 3)
	for _, c := range comps {
		assert.Equal(t, []float32{0, 1, 0}, c.Mean)
	}
}

func TestSeedEmpty(t *testing.T) {
	assert.Empty(t, Seed(vectormath.NewMatrix(0, 3), 2, testRand(1)))
	assert.Empty(t, Seed(randomUnitMatrix(t, 3, 3, 1), 0, testRand(1)))
}
