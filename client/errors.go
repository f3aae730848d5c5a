package client

import (
	"errors"
	"fmt"
)

// Failure classes surfaced to callers. Match with errors.Is; every class
// maps to a distinct user-facing message, unknown codes fall back to the
// generic one.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("slot already booked")
	ErrMentorUnavailable = errors.New("mentor unavailable")
	ErrRateLimited       = errors.New("rate limited")
	ErrNetwork           = errors.New("no response from server")
)

// APIError carries the raw HTTP status and server message alongside the
// taxonomy class it unwraps to.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 400:
		return ErrInvalidRequest
	case 401:
		return ErrUnauthenticated
	case 404:
		return ErrNotFound
	case 409:
		return ErrConflict
	case 422:
		return ErrMentorUnavailable
	case 429:
		return ErrRateLimited
	}
	return nil
}

// UserMessage renders the message shown to the person in front of the
// screen. Errors are never swallowed on the way here; this only picks the
// wording.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in again."
	case errors.Is(err, ErrConflict):
		return "That slot is no longer available, please pick another."
	case errors.Is(err, ErrMentorUnavailable):
		return "The mentor is unavailable at this time."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts, please try again in a moment."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the server. Check your connection and retry."
	case errors.Is(err, ErrInvalidRequest):
		return "The request was invalid, please review your selection."
	}
	return "Something went wrong, please try again."
}
