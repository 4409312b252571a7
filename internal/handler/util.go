// Package handler provides HTTP handlers for the dashboard API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/uara/dashboard/internal/apperror"
)

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    apperror.Kind     `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData writes a success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Data: data})
}

// writeError writes err as a failure envelope with its kind's status code.
func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.From(err)
	writeJSON(w, appErr.Code, errorEnvelope{
		Error:  appErr.Message,
		Code:   appErr.Kind,
		Fields: appErr.Fields,
	})
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.Validation("Request body too large", nil)
		case errors.Is(err, io.EOF):
			return apperror.Validation("Request body is required", nil)
		default:
			return apperror.Validation("Invalid request body", nil)
		}
	}
	return nil
}
