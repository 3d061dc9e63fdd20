package types

import (
	"errors"
	"fmt"
)

// ARCHITECTURAL DISCOVERY: Specific error types enable proper error handling
// and user-friendly error messages throughout the system
var (
	ErrMalformedSession      = errors.New("malformed session")
	ErrInvalidFeedback       = errors.New("invalid feedback")
	ErrInvalidSessionRequest = errors.New("invalid session request")
	ErrInvalidProfile        = errors.New("invalid profile")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidRegistration   = errors.New("invalid registration")
	ErrUnknownRole           = errors.New("role must be 'mentor' or 'mentee'")
	ErrUnknownBucket         = errors.New("bucket must be one of pending, upcoming, completed, declined")
)

// MalformedSessionError flags a session record that cannot be classified.
// It matches ErrMalformedSession with errors.Is.
type MalformedSessionError struct {
	SessionID string
	Reason    string
}

func (e *MalformedSessionError) Error() string {
	return fmt.Sprintf("malformed session %q: %s", e.SessionID, e.Reason)
}

func (e *MalformedSessionError) Unwrap() error { return ErrMalformedSession }

// Warning converts the error into the integrity warning surfaced to views.
func (e *MalformedSessionError) Warning() IntegrityWarning {
	return IntegrityWarning{SessionID: e.SessionID, Reason: e.Reason}
}

// UnknownWeekdayError is returned when an availability day name is not recognised.
type UnknownWeekdayError struct {
	Day string
}

func (e *UnknownWeekdayError) Error() string {
	return fmt.Sprintf("unknown weekday %q", e.Day)
}

func (e *UnknownWeekdayError) Unwrap() error { return ErrInvalidProfile }
