package tts

import (
	"errors"
	"fmt"
)

// ConnectionError reports that the server could not be reached.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to PlomTTS server at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ServiceError reports that the server answered with a failure or with a
// response that could not be used.
type ServiceError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return "PlomTTS service error: " + e.Detail
	}

	return fmt.Sprintf("PlomTTS service error (%d): %s", e.StatusCode, e.Detail)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err, or anything it wraps, is a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError

	return errors.As(err, &connErr)
}
