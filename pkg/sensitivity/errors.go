package sensitivity

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel wrapped by ValidationError.
var ErrValidation = errors.New("invalid sensitivity request")

// ValidationError is returned before any evaluation when a sweep cannot
// run: the input is not registered, is not numeric, or the step count is
// invalid.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("sensitivity: %s", e.Reason)
	}
	return fmt.Sprintf("sensitivity input %q: %s", e.Input, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
