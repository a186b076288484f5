package transcriber

import (
	"fmt"
)

// ServiceError is returned when the recognizer answers with a non-2xx status.
type ServiceError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("unexpected response from %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// ParseError is returned when the response body is not a valid segment document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse recognizer response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError wraps a failure to reach the recognizer at all.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("error connecting to %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
