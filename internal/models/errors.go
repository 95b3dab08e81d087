package models

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body for transport-level failures (bad request,
// auth, rate limit, unavailable collaborators). Pipeline rejections never
// use it; those travel inside QueryResponse with status "error".
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// WriteError writes a JSON error body with the given HTTP status.
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}

// WriteJSON writes any value as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
