package auth

import "time"

// CredentialRecord is the set of tokens and metadata representing one
// authenticated user's session with the identity provider. At most one
// record exists per user id; storing a new one fully replaces the prior
// record. Expiration is always derived from StoredAt plus ExpiresIn rather
// than stored as an absolute time.
type CredentialRecord struct {
	// UserID is the provider-issued stable subject identifier.
	UserID string `json:"user_id"`

	// AccessToken is the bearer credential handed to collaborators.
	AccessToken string `json:"access_token"`

	// RefreshToken renews the session; may be empty if the provider did not
	// grant offline access.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is the token type reported by the provider, typically "Bearer".
	TokenType string `json:"token_type"`

	// Scope is the granted permission set as reported by the provider.
	Scope string `json:"scope"`

	// ExpiresIn is the access token lifetime in seconds, as reported by the
	// provider at issue time.
	ExpiresIn int64 `json:"expires_in"`

	// StoredAt is the wall-clock time the record was persisted.
	StoredAt time.Time `json:"stored_at"`
}

// ExpiresAt returns the derived expiry instant of the access token.
func (r *CredentialRecord) ExpiresAt() time.Time {
	return r.StoredAt.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// Status describes a user's session without exposing any token material.
type Status struct {
	Authenticated   bool `json:"authenticated"`
	Expired         bool `json:"token_expired,omitempty"`
	HasRefreshToken bool `json:"has_refresh_token,omitempty"`
}
