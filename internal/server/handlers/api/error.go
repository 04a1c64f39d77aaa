package api

import "fmt"

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeNotFound       = "E_NOT_FOUND"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeUnknownError   = "E_UNKNOWN_ERR"
)

// APIError is the wire error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: code=%s, message=%s", e.Code, e.Message)
}
