package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/projection"
	"finanzas/internal/services"
	"finanzas/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, projection.ErrInvalidRadius),
		errors.Is(err, projection.ErrInvalidHorizon),
		errors.Is(err, services.ErrNotRecurring):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, storage.ErrInvalidReference),
		errors.Is(err, projection.ErrInvalidCard):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidMonth):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Server errors are logged and
// their details are not returned to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// nonNil makes empty lists encode as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
