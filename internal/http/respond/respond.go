package respond

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hongminglow/bountyboard/internal/logging"
	"github.com/hongminglow/bountyboard/internal/marketplace"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: status < http.StatusBadRequest, Code: status, Message: message, Data: data})
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message})
}

// Fail translates a marketplace error into its HTTP status. Unexpected errors
// are logged and answered with a generic message.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
		Error(w, status, "something went wrong, please try again")
		return
	}
	var e *marketplace.Error
	msg := err.Error()
	if errors.As(err, &e) {
		msg = e.Message
	}
	if status == http.StatusServiceUnavailable {
		logging.FromContext(r.Context()).WithError(err).Warn("dependency unavailable")
	}
	Error(w, status, msg)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch marketplace.KindOf(err) {
	case marketplace.KindInvalid:
		return http.StatusBadRequest
	case marketplace.KindUnauthorized:
		return http.StatusUnauthorized
	case marketplace.KindForbidden:
		return http.StatusForbidden
	case marketplace.KindNotFound:
		return http.StatusNotFound
	case marketplace.KindConflict:
		return http.StatusConflict
	case marketplace.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(context.Background()).WithError(err).Warn("respond: encode payload failed")
	}
}
