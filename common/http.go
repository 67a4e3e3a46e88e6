package common

import (
	"encoding/json"
	"net/http"
)

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode JSON", http.StatusInternalServerError)
	}
}

// RespondStatusJSON sends a JSON response with an explicit status code
func RespondStatusJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError sends a JSON error body in the shape the frontend expects
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondStatusJSON(w, status, map[string]string{"detail": detail})
}
