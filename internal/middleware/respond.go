package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/uara/dashboard/internal/apperror"
)

// reject writes err as a failure envelope.
func reject(w http.ResponseWriter, err *apperror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Message,
		"code":    err.Kind,
	})
}
