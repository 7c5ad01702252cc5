package errors

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Service-level error codes surfaced in the {success, data, error} envelope.
const (
	ErrCodeFetch   = "FETCH_ERROR"
	ErrCodeCreate  = "CREATE_ERROR"
	ErrCodeUpdate  = "UPDATE_ERROR"
	ErrCodeDelete  = "DELETE_ERROR"
	ErrCodeSync    = "SYNC_ERROR"
	ErrCodeOAuth   = "OAUTH_ERROR"
	ErrCodeTest    = "TEST_ERROR"
	ErrCodeRetry   = "RETRY_ERROR"
	ErrCodeCancel  = "CANCEL_ERROR"
	ErrCodeRefresh = "REFRESH_ERROR"
)

// HTTP-level error codes.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}
