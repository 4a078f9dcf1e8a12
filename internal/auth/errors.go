package auth

import (
	"errors"
	"time"

	"github.com/erazemk/omara/internal/sanitize"
	"github.com/erazemk/omara/internal/validate"
)

// Failure causes carried by *Error.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("user already registered")
	ErrRateLimited        = errors.New("too many attempts, please try again later")
	ErrInvalidSession     = errors.New("session expired or invalid")
)

// Error is returned by every Service operation. Message is safe to show to
// the user; Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Op         string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, cause error) *Error {
	return &Error{Op: op, Message: sanitize.ErrorMessage(cause), Err: cause}
}

func inputError(op string, verr *validate.Error) *Error {
	return &Error{
		Op:      op,
		Message: verr.Error(),
		Err:     errors.Join(ErrInvalidInput, verr),
	}
}
