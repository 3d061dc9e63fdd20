package store

import "errors"

// Store error types
var (
	ErrNoCredentials = errors.New("not logged in")
	ErrClosed        = errors.New("store is closed")
	ErrWriteTimeout  = errors.New("store write timed out")
	ErrInvalidRecord = errors.New("invalid store record")
)
