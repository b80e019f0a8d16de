package stage

import "fmt"

// ValidationError reports a missing or out-of-range parameter at Init time.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(param, format string, args ...any) error {
	return &ValidationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// InputError reports an unusable input record at Process time: wrong record
// variant, or a configured key absent from the input. The call aborts with no
// output mutation.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "bad input: " + e.Reason }

// Inputf builds an InputError with a formatted reason.
func Inputf(format string, args ...any) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// ComputationError reports a failure inside a stage's numeric pipeline (for
// example a spectrum over a too-short series). It is caught at the stage
// boundary and surfaces through the same error channel as the others.
type ComputationError struct {
	Op     string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Computationf builds a ComputationError for the given operation.
func Computationf(op, format string, args ...any) error {
	return &ComputationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
