package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrCacheMiss            = errors.New("cache miss")
	ErrProviderTemporary    = errors.New("provider temporary failure")
	ErrMalformedResponse    = errors.New("provider malformed response")
	ErrProvidersExhausted   = errors.New("all providers exhausted")
	ErrSessionAlreadyClosed = errors.New("session already closed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
