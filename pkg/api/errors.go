package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed platform call.
type Kind int

const (
	KindGeneric Kind = iota
	KindNotFound
	KindAuth
	KindServer
	KindConnectivity
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAuth:
		return "unauthorized"
	case KindServer:
		return "server error"
	case KindConnectivity:
		return "connectivity error"
	default:
		return "error"
	}
}

// Sentinels matched with errors.Is against an *Error of the same Kind.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrServer       = errors.New("server error")
	ErrConnectivity = errors.New("cannot reach server")

	// ErrNoSession is returned when no login has been stored yet.
	ErrNoSession = errors.New("not logged in, run 'iotctl login' first")
)

// Error is the single error type produced by the transport.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // Server supplied or derived description
	Err     error  // Underlying cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Kind {
	case KindNotFound:
		errs = append(errs, ErrNotFound)
	case KindAuth:
		errs = append(errs, ErrUnauthorized)
	case KindServer:
		errs = append(errs, ErrServer)
	case KindConnectivity:
		errs = append(errs, ErrConnectivity)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// statusError classifies a non-2xx response.
func statusError(status int, body []byte) *Error {
	kind := KindServer
	switch status {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusUnauthorized:
		kind = KindAuth
	}
	return &Error{Kind: kind, Status: status, Message: errorMessage(status, body)}
}

// errorMessage extracts a readable message from an error body.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

// connectivityError wraps a failure where no response was received.
func connectivityError(err error) *Error {
	return &Error{Kind: KindConnectivity, Err: err}
}
