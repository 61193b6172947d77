package forecast

import (
	"errors"
	"fmt"
)

// Error taxonomy for the forecasting core. Callers distinguish categories
// with errors.Is; batch operations capture fit errors per model instead of
// aborting, while argument and state errors always surface immediately.
var (
	// ErrInvalidArgument covers caller mistakes: non-positive horizons,
	// mismatched series lengths, unknown ensemble methods.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFit covers data-dependent fitting failures: insufficient history or
	// a failed statistical precondition. Recoverable by supplying more data.
	ErrFit = errors.New("fit failed")

	// ErrNotFitted is a state error: Predict or ConfidenceIntervals called
	// before a successful Fit.
	ErrNotFitted = errors.New("model is not fitted")

	// ErrDuplicateModel is returned when registering a model under a name
	// that is already taken. Silent replacement is deliberately not allowed.
	ErrDuplicateModel = errors.New("model already registered")

	// ErrNoPredictions is returned when ensemble aggregation or comparison
	// is requested before any model has produced a forecast. It is an
	// argument error: callers matching ErrInvalidArgument catch it too.
	ErrNoPredictions = fmt.Errorf("%w: no predictions available", ErrInvalidArgument)
)
