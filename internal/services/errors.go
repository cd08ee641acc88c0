package services

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no usable session is stored.
var ErrNotConfigured = errors.New("not configured: run 'iotctl login' first")

// RegistrationError reports a rejected tunnel registration.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register tunnel: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// StreamError reports a failed terminal stream.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("terminal stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
