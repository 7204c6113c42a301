package errors

import (
	"errors"
	"fmt"
)

// Common error types for the chat client
var (
	// Credential errors
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrRenewalExhausted = errors.New("token renewal attempts exhausted")
	ErrMalformedRenewal = errors.New("renewal response missing valid access token")
	ErrUnauthenticated  = errors.New("request unauthenticated")

	// Stream errors
	ErrStreamRejected = errors.New("stream reported an error frame")
	ErrStreamClosed   = errors.New("stream session closed")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
