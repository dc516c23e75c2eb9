package isochrone_client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized      = errors.New("access token rejected")
	ErrRateLimited       = errors.New("rate limit or quota exceeded")
	ErrInvalidInput      = errors.New("invalid input for isochrone")
	ErrMalformedResponse = errors.New("malformed response")
)

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// StatusError is returned for non-200 responses that don't map to one of
// the sentinel errors.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d: %s", e.StatusCode, e.Message)
}

func matchResponseError(statusCode int, body []byte) error {
	var errResp errorResponse

	if json.Unmarshal(body, &errResp) != nil || errResp.Message == "" {
		errResp.Message = string(body)
		if errResp.Message == "" {
			errResp.Message = "<no message>"
		}
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, errResp.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, errResp.Message)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalidInput, errResp.Message)
	}

	return &StatusError{
		StatusCode: statusCode,
		Message:    errResp.Message,
	}
}
