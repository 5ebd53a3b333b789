// Package httpx translates service results and taxonomy errors into the API
// response envelope. This is the only place errors become HTTP statuses.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/castellan-io/castellan/internal/shared"
)

// Envelope is the uniform response body: a success flag, a human-readable
// message, and either a data payload or an error detail.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// Success writes a successful envelope with the given status.
func Success(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error maps err onto the taxonomy and writes a failure envelope. Raw store
// or stack detail never reaches the caller.
func Error(w http.ResponseWriter, err error) {
	status := statusFor(shared.KindOf(err))
	writeJSON(w, status, Envelope{Success: false, Message: shared.UserSafeMessage(err)})
}

// ValidationError writes a BadRequest envelope carrying per-field violations.
func ValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Success: false,
		Message: "validation failed",
		Error:   fields,
	})
}

// DecodeJSON decodes the request body into target.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

func statusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	case shared.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
