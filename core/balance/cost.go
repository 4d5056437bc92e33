// Package balance assigns points to clusters under a hard per-cluster
// capacity, producing equal-size clusters up to the N mod K remainder.
package balance

import "fmt"

// CostMatrix is an N×K row-major matrix of per-(point, cluster) costs.
type CostMatrix struct {
	n    int
	k    int
	data []float64
}

// NewCostMatrix allocates a zeroed n×k cost matrix.
func NewCostMatrix(n, k int) *CostMatrix {
	return &CostMatrix{n: n, k: k, data: make([]float64, n*k)}
}

// CostMatrixFromRows builds a cost matrix from per-point rows.
func CostMatrixFromRows(rows [][]float64) (*CostMatrix, error) {
	if len(rows) == 0 {
		return &CostMatrix{}, nil
	}
	k := len(rows[0])
	c := NewCostMatrix(len(rows), k)
	for i, r := range rows {
		if len(r) != k {
			return nil, fmt.Errorf("cost row %d has %d entries, expected %d", i, len(r), k)
		}
		copy(c.data[i*k:(i+1)*k], r)
	}
	return c, nil
}

// Points returns N.
func (c *CostMatrix) Points() int { return c.n }

// Clusters returns K.
func (c *CostMatrix) Clusters() int { return c.k }

// At returns the cost of putting point i in cluster j.
func (c *CostMatrix) At(i, j int) float64 { return c.data[i*c.k+j] }

// Set stores the cost of putting point i in cluster j.
func (c *CostMatrix) Set(i, j int, v float64) { c.data[i*c.k+j] = v }

// Row returns the costs of point i as a slice sharing the backing buffer.
func (c *CostMatrix) Row(i int) []float64 {
	return c.data[i*c.k : (i+1)*c.k : (i+1)*c.k]
}
