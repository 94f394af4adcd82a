package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrTimeout is wrapped by network errors caused by the request timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrNotConfigured is returned when a required dependency is missing.
	ErrNotConfigured = errors.New("client not configured")
)

// Kind classifies a failed call.
type Kind string

const (
	// KindNetwork covers transport failures and timeouts: no response was received.
	KindNetwork Kind = "network"

	// KindUnauthorized is a 401; the session token has been cleared.
	KindUnauthorized Kind = "unauthorized"

	// KindValidation is a 4xx (or an envelope with success=false) whose
	// message is meant for the user.
	KindValidation Kind = "validation"

	// KindServer is a 5xx.
	KindServer Kind = "server"
)

// APIError is returned for every failed backend call.
type APIError struct {
	Kind       Kind
	Operation  string
	StatusCode int
	Message    string
	RequestID  string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("booking api %s %s error: %s", e.Operation, e.Kind, msg)
	}
	return fmt.Sprintf("booking api %s %s error (status %d): %s", e.Operation, e.Kind, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or "" if err is not an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Generic user-facing messages.
const (
	MessageNetwork = "Unable to reach the booking service. Check your connection and try again."
	MessageServer  = "The booking service is having trouble right now. Please try again later."
	MessageSession = "Your session has expired. Please log in again."
)

// UserMessage turns err into a short message for the user. Validation and
// authorization failures carry the server's message verbatim when it sent
// one; everything else falls back to fallback or a generic text.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if fallback != "" {
			return fallback
		}
		return err.Error()
	}

	switch apiErr.Kind {
	case KindValidation:
		if apiErr.Message != "" {
			return apiErr.Message
		}
	case KindUnauthorized:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if fallback == "" {
			return MessageSession
		}
	case KindNetwork:
		return MessageNetwork
	case KindServer:
		if fallback == "" {
			return MessageServer
		}
	}
	if fallback != "" {
		return fallback
	}
	return MessageServer
}

// classifyStatus maps a non-2xx status to a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 401:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}
