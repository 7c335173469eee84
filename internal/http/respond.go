package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"financefam/internal/core"
	"financefam/internal/log"
	"financefam/internal/middleware/trace"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: status < 400, Message: msg})
}

// statusOf maps an operation error onto an HTTP status.
func statusOf(err error) int {
	var de *core.DomainError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, core.ErrReceiptTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrReceiptUnreadable):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", log.NewFields().
			WithComponent(log.ComponentHTTP).
			WithError(err).
			With(log.FieldRequestID, trace.GetRequestID(r.Context())).
			With(log.FieldPath, r.URL.Path).
			ToSlice()...)
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeMessage(w, status, "Request body is too large.")
		return
	}
	writeMessage(w, status, core.ResultOf(err).Message)
}

// decodeJSON reads a bounded JSON body into v. It writes the error
// response itself and reports whether the caller should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}
