package syncapi

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var ErrNoServerURL = errors.New("syncapi: server url missing")

const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeNotFound       = "E_NOT_FOUND"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeUnknownError   = "E_UNKNOWN_ERR"
)

// APIError is the authority's error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// handleAPIError folds the transport error and the server error envelope
// into one error value.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s %w", operation, err)
		}
		return fmt.Errorf("api error: %s %s", operation, resp.Dump())
	}

	return nil
}
