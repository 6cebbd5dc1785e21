// Package common holds the JSON and path helpers shared by the mfgate route groups.
package common

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON answer
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSONResponse encodes data as the response body with statusCode
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// WriteErrorResponse answers with {"error": message}
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}
