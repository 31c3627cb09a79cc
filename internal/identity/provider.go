package identity

import "context"

// TokenSet is the result of a successful token endpoint exchange.
type TokenSet struct {
	// AccessToken is the bearer credential issued by the provider.
	AccessToken string

	// RefreshToken renews the session. The provider may omit it, and may or
	// may not rotate it across refreshes.
	RefreshToken string

	// TokenType is typically "Bearer".
	TokenType string

	// Scope is the granted scope set as reported by the provider.
	Scope string

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64

	// SubjectID is the provider-asserted stable subject identifier extracted
	// from a token claim, never user-supplied input. Only populated by code
	// exchanges.
	SubjectID string
}

// Provider is the external OAuth2 authorization server this service
// delegates code-for-token and refresh-token-for-token exchanges to.
// Implementations must surface semantic rejections as *ProviderError and
// may retry only transport-level failures.
type Provider interface {
	// BuildAuthorizationURL builds the provider's authorization endpoint URL
	// carrying the PKCE challenge, challenge method, anti-CSRF state, the
	// configured redirect URI, and the requested scopes. No network call.
	BuildAuthorizationURL(challenge, method, state string, scopes []string) string

	// ExchangeCode redeems an authorization code together with its PKCE
	// verifier for a token set.
	ExchangeCode(ctx context.Context, code, verifier string, scopes []string) (*TokenSet, error)

	// ExchangeRefreshToken redeems a refresh token for a fresh token set.
	ExchangeRefreshToken(ctx context.Context, refreshToken string, scopes []string) (*TokenSet, error)
}
