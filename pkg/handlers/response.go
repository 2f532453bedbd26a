// Package handlers contains the HTTP surface of the assistant.
package handlers

import (
	"encoding/json"
	"net/http"
)

// errorBody is the envelope every error response uses: a stable machine
// code plus a human-readable message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes a JSON error response.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, errorBody{Error: errorCode, Message: message})
}

// WriteJSON marshals data and writes it with the given status. Marshaling
// happens before the header is committed so an encoding failure surfaces
// as a 500 instead of a truncated success body.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","message":"response encoding failed"}`))
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(body)
	return err
}
