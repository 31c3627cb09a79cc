package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pepper-assistant/pepper/internal/auth"
	"github.com/pepper-assistant/pepper/internal/identity"
)

// stubProvider satisfies identity.Provider with canned responses.
type stubProvider struct {
	codeResult    *identity.TokenSet
	codeErr       error
	refreshResult *identity.TokenSet
	refreshErr    error
}

func (p *stubProvider) BuildAuthorizationURL(challenge, method, state string, scopes []string) string {
	v := url.Values{}
	v.Set("code_challenge", challenge)
	v.Set("code_challenge_method", method)
	v.Set("state", state)
	v.Set("scope", strings.Join(scopes, " "))
	return "https://login.example.com/authorize?" + v.Encode()
}

func (p *stubProvider) ExchangeCode(context.Context, string, string, []string) (*identity.TokenSet, error) {
	if p.codeErr != nil {
		return nil, p.codeErr
	}
	set := *p.codeResult
	return &set, nil
}

func (p *stubProvider) ExchangeRefreshToken(context.Context, string, []string) (*identity.TokenSet, error) {
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	set := *p.refreshResult
	return &set, nil
}

type serverFixture struct {
	server   *Server
	router   http.Handler
	provider *stubProvider
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider := &stubProvider{
		codeResult: &identity.TokenSet{
			AccessToken:  "AT1",
			RefreshToken: "RT1",
			TokenType:    "Bearer",
			Scope:        "User.Read",
			ExpiresIn:    3600,
			SubjectID:    "u1",
		},
		refreshResult: &identity.TokenSet{
			AccessToken: "AT2",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		},
	}

	cipher, err := auth.NewCipher("test-secret-key")
	require.NoError(t, err)

	states := auth.NewStateCache(10*time.Minute, 0, logger)
	t.Cleanup(states.Close)
	credentials := auth.NewStore(cipher, logger)

	orchestrator, err := auth.NewOrchestrator(auth.OrchestratorConfig{
		Provider:    provider,
		States:      states,
		Credentials: credentials,
		Scopes:      []string{"User.Read"},
		Logger:      logger,
	})
	require.NoError(t, err)

	srv, err := New(Config{
		Orchestrator: orchestrator,
		Version:      "test",
		Logger:       logger,
	})
	require.NoError(t, err)
	srv.health.SetReady(true)

	return &serverFixture{server: srv, router: srv.Router(), provider: provider}
}

func (f *serverFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// login drives the redirect plus callback and returns the callback recorder.
func (f *serverFixture) login(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()

	rec := f.do(t, http.MethodGet, "/auth/login", "")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	return f.do(t, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "")
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleRoot(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "test", body["version"])
}

func TestHandleLogin(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/auth/login", "")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	q := location.Query()
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestHandleCallback(t *testing.T) {
	f := newServerFixture(t)

	rec := f.login(t)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[messageResponse](t, rec)
	assert.Equal(t, "Authentication successful", body.Message)
	assert.Equal(t, "u1", body.UserID)
	assert.Equal(t, []string{"User.Read"}, body.Scopes)
}

func TestHandleCallbackMissingParams(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name   string
		target string
	}{
		{"no params", "/auth/callback"},
		{"missing state", "/auth/callback?code=abc"},
		{"missing code", "/auth/callback?state=xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, "invalid_request", body.Error)
		})
	}
}

func TestHandleCallbackInvalidState(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/auth/callback?code=abc&state=forged", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "invalid_state", body.Error)
}

func TestHandleCallbackProviderError(t *testing.T) {
	f := newServerFixture(t)
	f.provider.codeErr = identity.NewProviderError("invalid_grant", "code expired")

	rec := f.login(t)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "invalid_grant", body.Error)
}

func TestHandleStatus(t *testing.T) {
	f := newServerFixture(t)

	t.Run("unknown user", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/auth/status/nobody", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[statusResponse](t, rec)
		assert.False(t, body.Authenticated)
		assert.Equal(t, "nobody", body.UserID)
		assert.Nil(t, body.TokenExpired)
		assert.Nil(t, body.HasRefreshToken)
	})

	t.Run("authenticated user", func(t *testing.T) {
		rec := f.login(t)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/auth/status/u1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[statusResponse](t, rec)
		assert.True(t, body.Authenticated)
		require.NotNil(t, body.TokenExpired)
		assert.False(t, *body.TokenExpired)
		require.NotNil(t, body.HasRefreshToken)
		assert.True(t, *body.HasRefreshToken)
	})
}

func TestHandleRefresh(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodPost, "/auth/refresh", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[messageResponse](t, rec)
	assert.Equal(t, "u1", body.UserID)
}

func TestHandleRefreshUnknownUser(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/refresh", `{"user_id":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "not_found", body.Error)
}

func TestHandleRefreshProviderError(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)
	f.provider.refreshErr = identity.NewProviderError("invalid_grant", "refresh token expired")

	rec := f.do(t, http.MethodPost, "/auth/refresh", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "invalid_grant", body.Error)
}

func TestHandleLogout(t *testing.T) {
	f := newServerFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodPost, "/auth/logout", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/logout", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/status/u1", "")
	body := decodeBody[statusResponse](t, rec)
	assert.False(t, body.Authenticated)
}

func TestDecodeUserRequest(t *testing.T) {
	f := newServerFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{user_id}`},
		{"empty body", ``},
		{"missing user_id", `{}`},
		{"blank user_id", `{"user_id":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/auth/logout", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, "invalid_request", body.Error)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.do(t, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.do(t, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		f := newServerFixture(t)
		f.server.health.SetReady(false)
		rec := f.do(t, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("missing configuration", func(t *testing.T) {
		f := newServerFixture(t)
		f.server.health.missingVars = []string{"PEPPER_CLIENT_ID"}
		rec := f.do(t, http.MethodGet, "/readyz", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody[HealthResponse](t, rec)
		assert.Contains(t, body.MissingVars, "PEPPER_CLIENT_ID")
	})
}

func TestMethodNotAllowed(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
