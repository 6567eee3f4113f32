package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes the portal branches on.
const (
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeServerError        = "server_error"
	ErrorCodeUnavailable        = "unavailable"
)

// APIError is a typed error from the auth service or backend API. It carries
// the provider's human-readable message so callers can surface it verbatim.
type APIError struct {
	// StatusCode is the HTTP status code of the failed response
	StatusCode int

	// Code is a stable machine-readable error code
	Code string

	// Message is the provider-reported human-readable description
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAuthFailure reports whether err is an APIError carrying a 401.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Message extracts the provider-reported message from err, falling back to
// err.Error() for untyped failures.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// parseErrorResponse turns a non-2xx response body into a typed *APIError.
// It tries the portal's envelope first, then the Django-style detail field,
// then falls back to the HTTP status text.
func parseErrorResponse(statusCode int, body []byte) *APIError {
	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		code := envelope.Error
		if code == "" {
			code = defaultCodeFor(statusCode)
		}
		return &APIError{StatusCode: statusCode, Code: code, Message: envelope.Message}
	}

	var legacy legacyErrorResponse
	if err := json.Unmarshal(body, &legacy); err == nil && legacy.Detail != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       defaultCodeFor(statusCode),
			Message:    legacy.Detail,
		}
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       defaultCodeFor(statusCode),
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode)),
	}
}

func defaultCodeFor(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ErrorCodeInvalidToken
	case statusCode == http.StatusForbidden:
		return ErrorCodeForbidden
	case statusCode >= 500:
		return ErrorCodeServerError
	default:
		return ErrorCodeServerError
	}
}
