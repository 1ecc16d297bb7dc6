package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport indicates the request could not complete (DNS, connection,
	// timeout, undecodable body). It is never retried by the client.
	ErrTransport = errors.New("transport failure")
	// ErrUnauthorized matches envelope failures with HTTP status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned before any request when an input fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// EnvelopeError is returned when the backend answered but reported failure,
// either with success=false or a non-2xx status.
type EnvelopeError struct {
	StatusCode int
	Message    string
}

func (e *EnvelopeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 envelopes.
func (e *EnvelopeError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// StatusCode extracts the HTTP status of an envelope failure, or 0.
func StatusCode(err error) int {
	if ee, ok := errors.AsType[*EnvelopeError](err); ok {
		return ee.StatusCode
	}
	return 0
}
