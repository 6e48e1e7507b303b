package errors

import (
	"errors"
)

// As is errors.As re-exported so callers importing this package under the
// name "errors" do not also need the standard library package.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is re-exported for the same reason as As.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is errors.New re-exported for the same reason as As.
func New(text string) error {
	return errors.New(text)
}

// Join is errors.Join re-exported for the same reason as As.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
