package client

import "errors"

var (
	ErrNotFound         = errors.New("snapshot not found")
	ErrUnavailable      = errors.New("server unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMalformedPayload = errors.New("malformed snapshot payload")
)

// IsTransport reports whether err is a transport failure: anything that is
// neither "not found" nor a malformed payload.
func IsTransport(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrMalformedPayload)
}
