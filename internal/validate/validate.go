// Package validate holds the pure input checks run before any network or
// database call. Checks collect every failure instead of stopping at the first.
package validate

import "strings"

// Result is the outcome of a validation pass.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Error is returned for rejected user input. It is recoverable and meant to
// be shown inline next to the offending field.
type Error struct {
	Errors []string
}

func (e *Error) Error() string {
	return strings.Join(e.Errors, ", ")
}

// Err returns the result as an *Error, or nil when the input was valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Errors: r.Errors}
}

func newResult(errs []string) Result {
	return Result{Valid: len(errs) == 0, Errors: errs}
}
