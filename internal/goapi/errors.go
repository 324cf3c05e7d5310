package goapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFormDigest is returned when the digest page does not contain a formDigestValue.
	ErrNoFormDigest = errors.New("goapi: form digest not found in response")
	// ErrCursorLoop is returned when NextHref points back at an already visited page.
	ErrCursorLoop = errors.New("goapi: pagination cursor repeats")
	// ErrTooManyPages is returned when a cursor chain exceeds the configured page limit.
	ErrTooManyPages = errors.New("goapi: page limit exceeded")
	// ErrInvalidJSON is returned when a response body is not valid JSON.
	ErrInvalidJSON = errors.New("goapi: response is not valid JSON")
)

// RequestError describes a failed call to the GO API: either a transport error
// or a non-2xx status.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("goapi: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("goapi: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from err, or 0 when err is not a RequestError.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
