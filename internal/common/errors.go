package common

import "errors"

var (
	// ErrorNotFound is returned by stores when a key or path was never written.
	ErrorNotFound = errors.New("not found")

	// ErrInvalidPath is returned for snapshot paths that escape the store root.
	ErrInvalidPath = errors.New("invalid path")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
