package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySeries indicates no observations were supplied.
	ErrEmptySeries = errors.New("forecast: empty series")
	// ErrInsufficientData indicates fewer than two actual observations.
	ErrInsufficientData = errors.New("forecast: insufficient data")
)

// MalformedPeriodError reports an observation that cannot be placed on the quarter axis.
type MalformedPeriodError struct {
	Label  string
	Reason string
}

func (e *MalformedPeriodError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("forecast: malformed period %q: %s", e.Label, e.Reason)
	}
	return fmt.Sprintf("forecast: malformed period %q: expected YYYYQn", e.Label)
}

// ModelFitError explains why a model produced no estimate. It never leaves the package
// as a returned error; it is carried inside an unavailable Estimate.
type ModelFitError struct {
	Model  Model
	Reason string
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("%s fit failed: %s", e.Model, e.Reason)
}

func fitFailed(model Model, format string, args ...any) *ModelFitError {
	return &ModelFitError{Model: model, Reason: fmt.Sprintf(format, args...)}
}
