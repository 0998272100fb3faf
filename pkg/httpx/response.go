package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope status values.
const (
	StatusOK    = 1
	StatusError = -1
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Status int    `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK wraps data in a success envelope.
func WriteOK(w http.ResponseWriter, code int, data any) {
	WriteJSON(w, code, Envelope{Status: StatusOK, Data: data})
}

// WriteError writes a failure envelope. msg is shown to the caller verbatim,
// so it must never carry internal error text.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, Envelope{Status: StatusError, Error: msg})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
