package proxy

import (
	"errors"
	"fmt"
	"net/http"
)

// Plain-text bodies returned to callers.
const (
	MessageAPIKeyMissing = "API key is missing"
	MessagePoolExhausted = "No available API keys"
	MessageInternal      = "An internal error occurred. Please try again later."
)

// AuthenticationMissingError means the caller presented no credential.
// It is never retried.
type AuthenticationMissingError struct{}

// Error implements the error interface.
func (e *AuthenticationMissingError) Error() string {
	return "no API key presented"
}

// PoolExhaustedError means there was no active credential to try.
type PoolExhaustedError struct {
	// Attempts made before the pool ran dry.
	Attempts int
}

// Error implements the error interface.
func (e *PoolExhaustedError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("credential pool exhausted after %d attempts", e.Attempts)
	}
	return "credential pool has no active credentials"
}

// UpstreamFailure is a failed attempt: a non-2xx response or a transport
// error. When every attempt fails, the last failure is returned to the
// caller verbatim.
type UpstreamFailure struct {
	StatusCode int
	Body       []byte

	// ContentType of the upstream error body, if any.
	ContentType string

	// Attempts made for the request when this failure ended it.
	Attempts int

	// Cause is set for transport errors and for error bodies cut short by
	// the attempt deadline.
	Cause error
}

// Error implements the error interface.
func (e *UpstreamFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream failure (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("upstream failure (status %d)", e.StatusCode)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamFailure) Unwrap() error {
	return e.Cause
}

// RequestTooLargeError means the request body exceeded the buffer limit.
type RequestTooLargeError struct {
	Limit int64
}

// Error implements the error interface.
func (e *RequestTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds maximum size of %d bytes", e.Limit)
}

// ErrorResponse is the status and body written for an error.
type ErrorResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// HandleError maps an error from the proxy to the response the caller sees.
//
// Example usage:
//
//	if err != nil {
//	    WriteError(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *ErrorResponse {
	const textPlain = "text/plain; charset=utf-8"

	var authErr *AuthenticationMissingError
	if errors.As(err, &authErr) {
		return &ErrorResponse{StatusCode: http.StatusUnauthorized, ContentType: textPlain, Body: []byte(MessageAPIKeyMissing)}
	}

	var poolErr *PoolExhaustedError
	if errors.As(err, &poolErr) {
		return &ErrorResponse{StatusCode: http.StatusInternalServerError, ContentType: textPlain, Body: []byte(MessagePoolExhausted)}
	}

	var failure *UpstreamFailure
	if errors.As(err, &failure) {
		contentType := failure.ContentType
		if contentType == "" {
			contentType = textPlain
		}
		return &ErrorResponse{StatusCode: failure.StatusCode, ContentType: contentType, Body: failure.Body}
	}

	var tooLarge *RequestTooLargeError
	if errors.As(err, &tooLarge) {
		return &ErrorResponse{StatusCode: http.StatusRequestEntityTooLarge, ContentType: textPlain, Body: []byte(tooLarge.Error())}
	}

	return &ErrorResponse{StatusCode: http.StatusInternalServerError, ContentType: textPlain, Body: []byte(MessageInternal)}
}

// WriteError writes resp to w.
func WriteError(w http.ResponseWriter, resp *ErrorResponse) {
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
