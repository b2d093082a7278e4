package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorResponse is the error payload shape for every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

// respondWithJSON writes the payload as JSON with the provided status code.
// The status line is already committed by the time encoding can fail, so a
// failure is logged rather than rewritten.
func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "status", status, "error", err)
	}
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}
