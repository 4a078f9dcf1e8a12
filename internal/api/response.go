package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/omara/internal/auth"
	"github.com/erazemk/omara/internal/objstore"
	"github.com/erazemk/omara/internal/validate"
	"github.com/erazemk/omara/internal/wardrobe"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response failed", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps an orchestrator or auth error to a status code and a
// user-facing message.
func writeError(w http.ResponseWriter, err error) {
	msg := wardrobe.UserMessage(err)

	var verr *validate.Error
	if errors.As(err, &verr) {
		jsonResponse(w, http.StatusBadRequest, map[string]any{"error": msg, "errors": verr.Errors})
		return
	}

	var aerr *auth.Error
	if errors.As(err, &aerr) && aerr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(aerr.RetryAfter.Seconds()+0.5)))
	}

	jsonError(w, statusFor(err), msg)
}

func statusFor(err error) int {
	var perr *wardrobe.PersistenceError

	switch {
	case errors.Is(err, wardrobe.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, objstore.ErrExists):
		return http.StatusConflict
	case errors.Is(err, objstore.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &perr) && perr.Constraint:
		return http.StatusUnprocessableEntity
	case errors.As(err, &perr) && perr.NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
