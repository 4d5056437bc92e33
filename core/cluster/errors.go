package cluster

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when Fit is given no points.
	ErrEmptyInput = errors.New("no input points")

	// ErrInvalidK is returned when K is not in [1, N].
	ErrInvalidK = errors.New("cluster count must be in [1, N]")

	// ErrInvalidDimension is returned when points have no coordinates.
	ErrInvalidDimension = errors.New("points must have at least one dimension")

	// ErrNotUnitNorm is returned when an input point is not unit-norm.
	ErrNotUnitNorm = errors.New("point is not unit-norm")

	// ErrEngineUsed is returned when Fit is called twice on one Engine.
	ErrEngineUsed = errors.New("engine already fit; create a new engine to refit")
)

// ValidationError reports input rejected before any computation starts.
// The sentinel cause is available through errors.Is.
type ValidationError struct {
	// Row is the offending point, or -1 when the error is not about a point.
	Row int
	// Value is the offending quantity (norm, K, dimension).
	Value float64
	cause error
}

func (e *ValidationError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("validation failed at point %d (value %g): %v", e.Row, e.Value, e.cause)
	}
	return fmt.Sprintf("validation failed (value %g): %v", e.Value, e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }

func newValidationError(row int, value float64, cause error) *ValidationError {
	return &ValidationError{Row: row, Value: value, cause: cause}
}
