// Package api provides the HTTP handlers of the recognition service.
package api

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// validLetter reports whether s is A-Z, or "*" when wildcard is allowed.
func validLetter(s string, wildcard bool) bool {
	if wildcard && s == "*" {
		return true
	}
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}
