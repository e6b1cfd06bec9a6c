package script

import "fmt"

// MissingFieldError reports a raw segment record that lacks a required key.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// InvalidTimingError reports a segment whose end does not come after its
// start.
type InvalidTimingError struct {
	Start float64
	End   float64
}

func (e *InvalidTimingError) Error() string {
	return fmt.Sprintf("end time must be greater than start time (start=%g, end=%g)", e.Start, e.End)
}
