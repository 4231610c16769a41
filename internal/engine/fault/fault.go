package fault

import "fmt"

// ForbiddenError indicates the actor is not a party, or is a party but not
// the one authorized for the attempted transition.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string { return e.Reason }

// InvalidStateError indicates a precondition on the contract's current
// status or pending fields is not met. The caller should re-read state;
// this usually means the partner mutated the contract concurrently.
type InvalidStateError struct {
	Reason string
}

func (e InvalidStateError) Error() string { return e.Reason }

// ValidationError indicates malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Forbidden(format string, args ...any) error {
	return ForbiddenError{Reason: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return InvalidStateError{Reason: fmt.Sprintf(format, args...)}
}

func Invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
