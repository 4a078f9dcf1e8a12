package wardrobe

import (
	"errors"

	"github.com/erazemk/omara/internal/auth"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/validate"
)

// ErrUnauthenticated is returned when an operation is called without an owner.
var ErrUnauthenticated = errors.New("not authenticated")

// UploadError is returned when the object store rejects or fails an upload.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return "uploading " + e.Key + ": " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError is returned when the catalog rejects or fails a write.
type PersistenceError struct {
	Op         string
	Constraint bool
	NotFound   bool
	Err        error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ResolutionError is returned when a display URL could not be produced. The
// caller falls back to Path.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return "resolving " + e.Path + ": " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// UserMessage maps an error to the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *validate.Error
	var uerr *UploadError
	var perr *PersistenceError
	var aerr *auth.Error
	var rerr *ResolutionError

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &aerr):
		return aerr.Message
	case errors.As(err, &uerr):
		switch {
		case errors.Is(err, objstore.ErrTooLarge):
			return "Payload too large. Please choose an image under 10MB."
		case errors.Is(err, objstore.ErrExists):
			return "An image with this name already exists. Please try again."
		}
		return "Failed to upload image. Please try again."
	case errors.As(err, &perr):
		switch {
		case perr.Constraint:
			return "Invalid input. Please check your entries."
		case perr.NotFound:
			return "Item not found."
		}
		return "Failed to save item. Please try again."
	case errors.As(err, &rerr):
		return "Image could not be loaded."
	}
	return "An error occurred. Please try again."
}
