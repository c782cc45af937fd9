package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
)

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes an error response with an explicit status
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{Error: err.Error()}
	if ce, ok := err.(*apperrors.CodingError); ok {
		resp.Code = string(ce.Code)
	} else {
		resp.Code = string(apperrors.InternalError)
	}
	json.NewEncoder(w).Encode(resp)
}

// WriteCodedError writes an error with automatic status mapping
func WriteCodedError(w http.ResponseWriter, err error) {
	WriteError(w, err, statusFor(apperrors.CodeOf(err)))
}

// statusFor maps error codes to HTTP status codes
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.CodeNotFound, apperrors.ConflictNotFound, apperrors.SourceMissing:
		return http.StatusNotFound // 404
	case apperrors.InvalidAction:
		return http.StatusBadRequest // 400
	case apperrors.ValidationFailed:
		return http.StatusUnprocessableEntity // 422
	case apperrors.SourceCorrupt:
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError // 500
	}
}
