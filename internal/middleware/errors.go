// ABOUTME: JSON error response helper shared by middleware and the dev auth service
// ABOUTME: Emits the {"error": "..."} body the auth client decodes

package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteJSONError writes an error response as JSON with the given status code
func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, struct {
		Error string `json:"error"`
	}{
		Error: message,
	})
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
