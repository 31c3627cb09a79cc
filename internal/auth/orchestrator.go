package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pepper-assistant/pepper/internal/identity"
	"github.com/pepper-assistant/pepper/internal/instrumentation"
	"github.com/pepper-assistant/pepper/internal/logging"
)

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	// Provider performs the actual network exchanges with the identity
	// provider. Required.
	Provider identity.Provider

	// States holds pending login state between BeginLogin and
	// CompleteLogin. Required.
	States *StateCache

	// Credentials persists one encrypted record per authenticated user.
	// Required.
	Credentials *Store

	// Scopes are the default scopes requested when a login does not name
	// its own.
	Scopes []string

	// VerifierLength is the PKCE verifier length, DefaultVerifierLength if zero.
	VerifierLength int

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Metrics records auth operation outcomes (optional).
	Metrics *instrumentation.Metrics
}

// Orchestrator ties login, callback, refresh, logout, and status together.
// It owns no credential state itself; it only composes the state cache, the
// credential store, and the identity provider collaborator.
//
// A login attempt moves NotStarted -> PendingCallback -> Authenticated or
// Failed. A pending attempt whose callback never arrives simply expires out
// of the state cache; there is no explicit cancel.
type Orchestrator struct {
	provider       identity.Provider
	states         *StateCache
	credentials    *Store
	scopes         []string
	verifierLength int
	logger         *slog.Logger
	metrics        *instrumentation.Metrics
}

// NewOrchestrator validates the configuration and creates the orchestrator.
func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if config.Provider == nil {
		return nil, NewConfigurationError("identity provider is required")
	}
	if config.States == nil {
		return nil, NewConfigurationError("state cache is required")
	}
	if config.Credentials == nil {
		return nil, NewConfigurationError("credential store is required")
	}

	verifierLength := config.VerifierLength
	if verifierLength == 0 {
		verifierLength = DefaultVerifierLength
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &Orchestrator{
		provider:       config.Provider,
		states:         config.States,
		credentials:    config.Credentials,
		scopes:         config.Scopes,
		verifierLength: verifierLength,
		logger:         logger,
		metrics:        metrics,
	}, nil
}

// LoginResult is what a completed login reports back to the HTTP surface:
// the provider-asserted subject id and the scopes the provider granted.
type LoginResult struct {
	UserID string
	Scopes []string
}

// BeginLogin starts a login attempt: generates a PKCE pair and a fresh state
// token, parks the verifier and requested scopes in the state cache, and
// returns the provider's authorization URL for the browser to follow. No
// network call occurs here.
func (o *Orchestrator) BeginLogin(scopes []string) (string, error) {
	if len(scopes) == 0 {
		scopes = o.scopes
	}

	pair, err := GeneratePair(o.verifierLength)
	if err != nil {
		return "", err
	}

	state, err := NewStateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	o.states.Put(state, pair.Verifier, scopes)

	url := o.provider.BuildAuthorizationURL(pair.Challenge, pair.Method, state, scopes)
	o.logger.Debug("login initiated", "scopes", scopes)
	return url, nil
}

// CompleteLogin handles the provider callback. The state is consumed before
// any network call, so a replayed or forged callback is rejected without
// talking to the provider. The code exchange uses the scopes the login was
// initiated with. On success the token set is persisted encrypted and the
// provider-asserted subject id and granted scopes are returned.
func (o *Orchestrator) CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	verifier, scopes, err := o.states.Take(state)
	if err != nil {
		o.metrics.RecordAuth(ctx, instrumentation.ResultFailure)
		o.logger.Warn("callback rejected", logging.Err(err))
		return nil, err
	}

	tokenSet, err := o.provider.ExchangeCode(ctx, code, verifier, scopes)
	if err != nil {
		o.metrics.RecordAuth(ctx, instrumentation.ResultFailure)
		o.logger.Warn("code exchange failed", logging.Err(err))
		return nil, err
	}

	if tokenSet.SubjectID == "" {
		o.metrics.RecordAuth(ctx, instrumentation.ResultFailure)
		return nil, fmt.Errorf("provider response carries no subject identifier")
	}

	record := recordFrom(tokenSet.SubjectID, tokenSet)
	replaced, err := o.credentials.Store(tokenSet.SubjectID, record)
	if err != nil {
		o.metrics.RecordAuth(ctx, instrumentation.ResultFailure)
		return nil, err
	}
	if !replaced {
		o.metrics.IncrementActiveSessions(ctx)
	}

	o.metrics.RecordAuthWithUser(ctx, instrumentation.ResultSuccess, logging.AnonymizeUser(tokenSet.SubjectID))
	o.logger.Info("login completed",
		logging.UserHash(tokenSet.SubjectID),
		"has_refresh_token", tokenSet.RefreshToken != "")

	granted := strings.Fields(tokenSet.Scope)
	if len(granted) == 0 {
		granted = scopes
	}
	return &LoginResult{UserID: tokenSet.SubjectID, Scopes: granted}, nil
}

// Refresh renews the user's access token with the stored refresh token.
// The prior record is left untouched on provider rejection so the caller
// can decide to prompt re-authentication. When the provider omits a new
// refresh token the prior one is carried over; the provider may or may not
// rotate it.
func (o *Orchestrator) Refresh(ctx context.Context, userID string) error {
	record, err := o.credentials.Get(userID)
	if err != nil {
		o.metrics.RecordTokenRefresh(ctx, instrumentation.ResultFailure)
		return err
	}
	if record.RefreshToken == "" {
		o.metrics.RecordTokenRefresh(ctx, instrumentation.ResultFailure)
		return ErrNoRefreshToken
	}

	tokenSet, err := o.provider.ExchangeRefreshToken(ctx, record.RefreshToken, o.scopes)
	if err != nil {
		o.metrics.RecordTokenRefresh(ctx, instrumentation.ResultFailure)
		o.logger.Warn("token refresh failed", logging.UserHash(userID), logging.Err(err))
		return err
	}

	renewed := recordFrom(userID, tokenSet)
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = record.RefreshToken
	}

	// StoreIfPresent keeps a concurrent logout deterministic: either the
	// renewed record lands before the delete, or the refresh reports
	// NotFound and no record is resurrected.
	if err := o.credentials.StoreIfPresent(userID, renewed); err != nil {
		o.metrics.RecordTokenRefresh(ctx, instrumentation.ResultFailure)
		return err
	}

	o.metrics.RecordTokenRefresh(ctx, instrumentation.ResultSuccess)
	o.logger.Info("token refreshed", logging.UserHash(userID))
	return nil
}

// Logout deletes the user's credential record. ErrNotFound if none existed.
func (o *Orchestrator) Logout(ctx context.Context, userID string) error {
	if !o.credentials.Delete(userID) {
		return ErrNotFound
	}
	o.metrics.DecrementActiveSessions(ctx)
	o.logger.Info("logged out", logging.UserHash(userID))
	return nil
}

// Status reports the user's session state without exposing token material.
// A missing or undecryptable record reads as unauthenticated.
func (o *Orchestrator) Status(userID string) Status {
	record, err := o.credentials.Get(userID)
	if err != nil {
		return Status{Authenticated: false}
	}

	return Status{
		Authenticated:   true,
		Expired:         o.credentials.IsExpired(userID),
		HasRefreshToken: record.RefreshToken != "",
	}
}

// recordFrom builds a credential record from a provider token set. StoredAt
// is stamped by the store at persistence time.
func recordFrom(userID string, set *identity.TokenSet) *CredentialRecord {
	return &CredentialRecord{
		UserID:       userID,
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		TokenType:    set.TokenType,
		Scope:        set.Scope,
		ExpiresIn:    set.ExpiresIn,
	}
}
