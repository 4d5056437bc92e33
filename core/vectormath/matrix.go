package vectormath

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// minBlockRows keeps GEMM blocks large enough that goroutine overhead
// stays small next to the multiply.
const minBlockRows = 256

// Matrix is a dense row-major float32 matrix. Rows are views into a single
// contiguous buffer so the whole matrix can be handed to BLAS.
type Matrix struct {
	rows int
	cols int
	data []float32
}

// NewMatrix allocates a zeroed rows×cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

// MatrixFromRows copies vectors into a new Matrix. All rows must have the
// same length.
func MatrixFromRows(vectors [][]float32) (*Matrix, error) {
	if len(vectors) == 0 {
		return &Matrix{}, nil
	}
	cols := len(vectors[0])
	m := NewMatrix(len(vectors), cols)
	for i, v := range vectors {
		if len(v) != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(v), cols)
		}
		copy(m.data[i*cols:(i+1)*cols], v)
	}
	return m, nil
}

// MatrixFromData wraps an existing row-major buffer without copying.
func MatrixFromData(rows, cols int, data []float32) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("buffer has %d values, expected %d×%d", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Data exposes the backing buffer.
func (m *Matrix) Data() []float32 { return m.data }

// Row returns row i as a slice sharing the backing buffer.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// SetRow copies v into row i.
func (m *Matrix) SetRow(i int, v []float32) {
	copy(m.data[i*m.cols:(i+1)*m.cols], v)
}

func (m *Matrix) general(lo, hi int) blas32.General {
	return blas32.General{
		Rows:   hi - lo,
		Cols:   m.cols,
		Stride: m.cols,
		Data:   m.data[lo*m.cols : hi*m.cols],
	}
}

// CheckUnit returns the first row whose norm deviates from 1 by more than
// tol. ok is true when every row is unit-norm.
func (m *Matrix) CheckUnit(tol float64) (row int, norm float64, ok bool) {
	for i := 0; i < m.rows; i++ {
		n := Norm64(m.Row(i))
		if !(math.Abs(n-1) <= tol) {
			return i, n, false
		}
	}
	return -1, 0, true
}

// SimilarityMatrix computes out[i*K+j] = points[i]·centers[j] for all
// pairs, where K = centers.Rows().
//
// The product is one GEMM (points @ centers.T) split into row blocks; each
// block writes only its own rows of out, so blocks run concurrently
// without locking. workers <= 0 means runtime.GOMAXPROCS(0).
func SimilarityMatrix(ctx context.Context, points, centers *Matrix, workers int) ([]float32, error) {
	if points.cols != centers.cols {
		return nil, fmt.Errorf("dimension mismatch: points have %d columns, centers have %d", points.cols, centers.cols)
	}
	n, k := points.rows, centers.rows
	out := make([]float32, n*k)
	if n == 0 || k == 0 {
		return out, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	blockRows := (n + workers - 1) / workers
	if blockRows < minBlockRows {
		blockRows = minBlockRows
	}

	c := centers.general(0, k)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += blockRows {
		hi := min(lo+blockRows, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// dots = X[lo:hi] @ C.T
			blas32.Gemm(blas.NoTrans, blas.Trans, 1.0,
				points.general(lo, hi), c, 0.0,
				blas32.General{Rows: hi - lo, Cols: k, Stride: k, Data: out[lo*k : hi*k]},
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
