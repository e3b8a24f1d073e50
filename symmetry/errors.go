package symmetry

import "errors"

// Every message carries the "symmetry:" prefix. Callers match with errors.Is;
// context is added with fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidAxis is returned for an axis outside x, y, z.
	ErrInvalidAxis = errors.New("symmetry: invalid axis")

	// ErrInvalidThreshold is returned for a negative, NaN or infinite threshold.
	ErrInvalidThreshold = errors.New("symmetry: invalid threshold")

	// ErrDuplicatePoint is returned when two points share an id.
	ErrDuplicatePoint = errors.New("symmetry: duplicate point id")

	// ErrUnknownPoint is returned when a selected id names no point.
	ErrUnknownPoint = errors.New("symmetry: unknown point id")

	// ErrInfeasibleSolve is returned when the solver cannot certify its matching.
	ErrInfeasibleSolve = errors.New("symmetry: infeasible solve")

	// ErrSolveTimeout is returned when the deadline expires before the solve completes.
	ErrSolveTimeout = errors.New("symmetry: solve timed out")

	// ErrInvalidSnapshot is returned for malformed snapshot or OBJ input.
	ErrInvalidSnapshot = errors.New("symmetry: invalid snapshot")
)

// IsRetryable reports whether a failed call may succeed when retried,
// typically with a tighter threshold.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSolveTimeout)
}

// ErrorKind maps an error to the short label used on the wire.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSolveTimeout):
		return "timeout"
	case errors.Is(err, ErrInfeasibleSolve):
		return "infeasible"
	case errors.Is(err, ErrInvalidAxis), errors.Is(err, ErrInvalidThreshold),
		errors.Is(err, ErrDuplicatePoint), errors.Is(err, ErrUnknownPoint),
		errors.Is(err, ErrInvalidSnapshot):
		return "invalid"
	}
	return "internal"
}
