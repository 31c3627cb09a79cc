// Package identity abstracts the external OAuth2 authorization server the
// auth core delegates token exchanges to.
//
// Provider is the collaborator interface: build an authorization URL,
// exchange an authorization code plus PKCE verifier, exchange a refresh
// token. AzureProvider implements it against the Microsoft identity
// platform's v2.0 endpoints.
//
// Error discipline: a semantic rejection from the provider (invalid_grant,
// invalid_client, ...) surfaces as *ProviderError and is terminal for the
// attempt; only transport-level failures are retried, with exponential
// backoff bounded by the configured elapsed time.
package identity
