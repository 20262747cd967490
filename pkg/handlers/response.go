// Package handlers exposes the consistency layer's operations over HTTP.
// Every write goes through the sync engine so callers get the same
// optimistic, queue-backed semantics whether the shards are reachable or
// not.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) error {
	var validation *apperrors.ValidationError
	if errors.As(err, &validation) {
		return ErrorResponse(w, http.StatusBadRequest, "validation_failed", validation.Error())
	}
	if existingID, ok := apperrors.IsDuplicate(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		return json.NewEncoder(w).Encode(map[string]string{
			"error":      "duplicate_content",
			"message":    err.Error(),
			"existingId": existingID,
		})
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	}
	return ErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
}
