package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the auth core. Callers match them with
// errors.Is and map them to transport-level responses.
var (
	// ErrInvalidState indicates a callback presented a state value that was
	// never issued, was already consumed, or has expired. It is always a
	// rejected request and never retried.
	ErrInvalidState = errors.New("invalid or expired state parameter")

	// ErrNotFound indicates no credential record exists for the user.
	ErrNotFound = errors.New("no credentials found for user")

	// ErrNoRefreshToken indicates a record exists but carries no refresh
	// token, so the session cannot be renewed without re-authentication.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrDecryptionFailure indicates a stored record could not be
	// authenticated and decrypted. The record is unrecoverable and the user
	// must re-authenticate.
	ErrDecryptionFailure = errors.New("credential record could not be decrypted")
)

// ConfigurationError indicates invalid static setup, such as an
// out-of-range PKCE verifier length or missing provider credentials.
// It is fatal at startup and never retried.
type ConfigurationError struct {
	Reason string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
