package board

import "fmt"

// ValidationError rejects a mutation before any board state changes. The
// message is safe to show to the user.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func errValidation(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
