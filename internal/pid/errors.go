package pid

import "errors"

// Rejection reasons. A call that returns one of these leaves the controller
// exactly as it was.
var (
	// ErrInvalidLimits indicates a limit pair with min >= max or an infinite bound.
	ErrInvalidLimits = errors.New("pid: invalid limits (min must be below max)")

	// ErrInvalidTuning indicates Kc == 0 or a negative time constant.
	ErrInvalidTuning = errors.New("pid: invalid tuning (Kc must be non-zero, tauI and tauD non-negative)")

	// ErrInvalidInterval indicates a non-positive sample interval.
	ErrInvalidInterval = errors.New("pid: invalid interval (must be positive)")
)
