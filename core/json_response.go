package core

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// JSONResponse is the standard JSON response structure
type JSONResponse struct {
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// ValidationError maps field names to validation messages.
type ValidationError map[string][]string

func (v ValidationError) Error() string { return "validation error" }

// WriteJSON renders data with the given status.
func WriteJSON(w http.ResponseWriter, status int, body JSONResponse) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteError renders err as a uniform error body. Internal causes are never
// serialized.
func WriteError(w http.ResponseWriter, err error) error {
	var verr ValidationError
	if errors.As(err, &verr) {
		detail := &ErrorDetail{
			Code:    ErrValidation.Key,
			Message: ErrValidation.Message,
			Details: make(map[string][]string, len(verr)),
		}
		maps.Copy(detail.Details, verr)
		return WriteJSON(w, http.StatusUnprocessableEntity, JSONResponse{Error: detail})
	}

	pub := Public(err)
	return WriteJSON(w, HTTPStatus(pub.Kind), JSONResponse{
		Error: &ErrorDetail{Code: pub.Key, Message: pub.Message},
	})
}
