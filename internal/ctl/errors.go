package ctl

import (
	"errors"
	"fmt"
)

// RequestError is returned when a REST call to the PBX control API
// receives a non-2xx response. It carries enough detail for callers to
// distinguish a "not found" retry case from a fatal failure.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("ctl: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// NotFound reports whether the error represents a 404 from the PBX,
// the condition TAP's external-media retry and snoopChannel's
// name-to-id fallback both treat as retriable.
func (e *RequestError) NotFound() bool {
	return e.StatusCode == 404
}

// IsNotFound is a convenience wrapper for callers holding a generic
// error. Call sites like Bridge.AddChannel wrap a *RequestError with
// fmt.Errorf's %w, so this must unwrap rather than type-assert.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.NotFound()
}
