package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates API key verification failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
