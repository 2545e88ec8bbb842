package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"bloomkart/internal/model"

	"github.com/rs/zerolog"
)

// Response is the uniform envelope returned by every endpoint.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries a machine-readable code plus whatever structured detail
// the error kind provides, so clients render actionable messages without
// parsing message strings.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeData writes a success envelope with the given status code.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// writeError writes a failure envelope with the given status code.
func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// writeServiceError maps the closed set of domain error kinds onto HTTP
// responses. Unrecognised errors are infrastructure failures: they are logged
// in full and surfaced as an opaque 500.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "request validation failed", verr.Fields)
		return
	}

	var perr *model.PricingError
	if errors.As(err, &perr) {
		writeError(w, http.StatusUnprocessableEntity, model.ErrCodeValidation, perr.Error(), perr.Lines)
		return
	}

	var nferr *model.NotFoundError
	if errors.As(err, &nferr) {
		writeError(w, http.StatusNotFound, model.ErrCodeNotFound, nferr.Error(), nil)
		return
	}

	var iterr *model.InvalidTransitionError
	if errors.As(err, &iterr) {
		writeError(w, http.StatusConflict, model.ErrCodeInvalidTransition, iterr.Error(), iterr)
		return
	}

	var cmerr *model.ConcurrentModificationError
	if errors.As(err, &cmerr) {
		writeError(w, http.StatusConflict, model.ErrCodeConflict, cmerr.Error(), nil)
		return
	}

	logger.Error().Err(err).Msg("unhandled service error")
	writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", nil)
}
