package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the wire shape of every error answer. Timestamp is only
// set on server-side failures.
type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message} with the given status code
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteServerError writes a sanitized 5xx answer stamped with the given time.
// message must never carry datastore text.
func WriteServerError(w http.ResponseWriter, statusCode int, message string, at time.Time) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:     message,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteServerError(w, http.StatusInternalServerError, message, time.Now())
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteServerError(w, http.StatusServiceUnavailable, message, time.Now())
}
