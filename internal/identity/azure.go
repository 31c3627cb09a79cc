package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// defaultExpiresIn is assumed when the provider omits an explicit
	// access token lifetime.
	defaultExpiresIn = 3600

	// defaultRetryElapsed bounds how long transient failures are retried
	// before the exchange is given up.
	defaultRetryElapsed = 15 * time.Second
)

// reservedScopes are always requested alongside the configured Graph scopes.
// Without openid the token endpoint returns no id_token, so there is no
// subject id to key the session by; without offline_access Azure never
// issues a refresh token. MSAL appends these implicitly; x/oauth2 sends the
// scope list literally.
var reservedScopes = []string{"openid", "profile", "offline_access"}

// AzureConfig configures the Microsoft identity platform provider.
type AzureConfig struct {
	// ClientID is the Azure AD application (client) id.
	ClientID string

	// ClientSecret authenticates the client at the token endpoint.
	// Optional; public clients rely on PKCE alone.
	ClientSecret string

	// TenantID selects the Azure AD tenant ("common" for multi-tenant).
	TenantID string

	// RedirectURL is the callback URL registered with the application.
	RedirectURL string

	// HTTPClient is used for token endpoint calls. If nil, a client with a
	// 30 second timeout is used.
	HTTPClient *http.Client

	// RetryMaxElapsed bounds retries of transport-level failures.
	// Defaults to 15 seconds.
	RetryMaxElapsed time.Duration

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// AzureProvider implements Provider against Azure AD v2.0 endpoints.
type AzureProvider struct {
	oauthConfig     *oauth2.Config
	httpClient      *http.Client
	retryMaxElapsed time.Duration
	logger          *slog.Logger
}

// NewAzureProvider validates the configuration and creates the provider.
func NewAzureProvider(config AzureConfig) (*AzureProvider, error) {
	if config.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if config.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if config.RedirectURL == "" {
		return nil, fmt.Errorf("redirect url is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retryMaxElapsed := config.RetryMaxElapsed
	if retryMaxElapsed == 0 {
		retryMaxElapsed = defaultRetryElapsed
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AzureProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(config.TenantID),
			RedirectURL:  config.RedirectURL,
		},
		httpClient:      httpClient,
		retryMaxElapsed: retryMaxElapsed,
		logger:          logger,
	}, nil
}

// BuildAuthorizationURL builds the Azure AD authorization endpoint URL.
func (p *AzureProvider) BuildAuthorizationURL(challenge, method, state string, scopes []string) string {
	cfg := p.scopedConfig(scopes)
	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", method),
	)
}

// ExchangeCode redeems an authorization code and its PKCE verifier at the
// token endpoint and extracts the provider-asserted subject id from the
// id_token.
func (p *AzureProvider) ExchangeCode(ctx context.Context, code, verifier string, scopes []string) (*TokenSet, error) {
	cfg := p.scopedConfig(scopes)

	token, err := p.retrieve(ctx, func(ctx context.Context) (*oauth2.Token, error) {
		return cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", verifier))
	})
	if err != nil {
		return nil, err
	}

	set := tokenSetFrom(token)
	subject, err := subjectFromIDToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to extract subject from token response: %w", err)
	}
	set.SubjectID = subject

	p.logger.Debug("exchanged authorization code",
		"expires_in", set.ExpiresIn,
		"has_refresh_token", set.RefreshToken != "")
	return set, nil
}

// ExchangeRefreshToken redeems a refresh token at the token endpoint.
func (p *AzureProvider) ExchangeRefreshToken(ctx context.Context, refreshToken string, scopes []string) (*TokenSet, error) {
	cfg := p.scopedConfig(scopes)

	token, err := p.retrieve(ctx, func(ctx context.Context) (*oauth2.Token, error) {
		src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		return src.Token()
	})
	if err != nil {
		return nil, err
	}

	set := tokenSetFrom(token)
	p.logger.Debug("exchanged refresh token",
		"expires_in", set.ExpiresIn,
		"rotated", set.RefreshToken != "" && set.RefreshToken != refreshToken)
	return set, nil
}

// retrieve runs a token endpoint call with exponential backoff. Transport
// failures and 5xx responses are retried; an OAuth error response from the
// provider is terminal and surfaces as *ProviderError.
func (p *AzureProvider) retrieve(ctx context.Context, call func(ctx context.Context) (*oauth2.Token, error)) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	var token *oauth2.Token
	operation := func() error {
		var err error
		token, err = call(ctx)
		if err == nil {
			return nil
		}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
				p.logger.Warn("token endpoint returned server error, retrying",
					"status", retrieveErr.Response.StatusCode)
				return err
			}
			return backoff.Permanent(providerErrorFrom(retrieveErr))
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		p.logger.Warn("token endpoint call failed, retrying", "error", err)
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = p.retryMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, err
	}
	return token, nil
}

// scopedConfig returns a copy of the oauth2 config carrying the per-call
// scopes plus the reserved OpenID Connect scopes.
func (p *AzureProvider) scopedConfig(scopes []string) *oauth2.Config {
	cfg := *p.oauthConfig
	cfg.Scopes = withReservedScopes(scopes)
	return &cfg
}

// withReservedScopes appends the reserved scopes not already requested.
func withReservedScopes(scopes []string) []string {
	merged := make([]string, 0, len(scopes)+len(reservedScopes))
	merged = append(merged, scopes...)
	for _, reserved := range reservedScopes {
		if !slices.Contains(merged, reserved) {
			merged = append(merged, reserved)
		}
	}
	return merged
}

// providerErrorFrom maps an oauth2 error response to a ProviderError.
func providerErrorFrom(err *oauth2.RetrieveError) *ProviderError {
	code := err.ErrorCode
	if code == "" {
		code = "server_error"
	}
	return NewProviderError(code, err.ErrorDescription)
}

// tokenSetFrom converts an oauth2 token response into a TokenSet.
func tokenSetFrom(token *oauth2.Token) *TokenSet {
	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		if !token.Expiry.IsZero() {
			expiresIn = int64(time.Until(token.Expiry).Seconds())
		} else {
			expiresIn = defaultExpiresIn
		}
	}

	scope, _ := token.Extra("scope").(string)
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    tokenType,
		Scope:        scope,
		ExpiresIn:    expiresIn,
	}
}

// subjectFromIDToken extracts the stable subject identifier from the
// id_token returned alongside the access token. Azure AD's "oid" claim is
// the tenant-stable object id the original deployment keys sessions by;
// "sub" is the spec-mandated fallback. The id_token arrives over TLS
// directly from the token endpoint, so its signature is not re-verified
// here.
func subjectFromIDToken(token *oauth2.Token) (string, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("token response contains no id_token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("failed to parse id_token: %w", err)
	}

	if oid, ok := claims["oid"].(string); ok && oid != "" {
		return oid, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("id_token carries neither oid nor sub claim")
}
