package identity

import "fmt"

// ProviderError is a semantic rejection passed through from the identity
// provider, e.g. "invalid_grant" for an expired refresh token. It is
// terminal for the attempt and must never be retried with the same inputs.
// The description never contains token material.
type ProviderError struct {
	Code        string // OAuth error code (e.g., "invalid_grant", "invalid_client")
	Description string // Human-readable error description
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewProviderError creates a new provider error
func NewProviderError(code, description string) *ProviderError {
	return &ProviderError{Code: code, Description: description}
}
