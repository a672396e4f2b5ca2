package homework

import "github.com/cockroachdb/errors"

var (
	// ErrMalformedResponse marks any payload whose shape is not what the
	// review API promises. ErrMissingKeys is also marked with it.
	ErrMalformedResponse = errors.New("malformed response")
	ErrMissingKeys       = errors.New("missing keys")
	ErrMissingField      = errors.New("missing field")
	ErrUnknownStatus     = errors.New("unknown status")
)
