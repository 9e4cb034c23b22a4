// Package shared holds response helpers common to all HTTP handlers.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "onpaku/pkg/domain-errors"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the JSON
// error body. Non-domain errors become an opaque 500.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.ToHTTPStatus(err), errorBody{
		Error:   string(dErrors.CodeOf(err)),
		Message: dErrors.Message(err),
	})
}
