package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/pepper-assistant/pepper/internal/auth"
	"github.com/pepper-assistant/pepper/internal/identity"
	"github.com/pepper-assistant/pepper/internal/logging"
)

// errorResponse is the OAuth-style error body returned on failures.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type userRequest struct {
	UserID string `json:"user_id"`
}

type messageResponse struct {
	Message string   `json:"message"`
	UserID  string   `json:"user_id"`
	Scopes  []string `json:"scopes,omitempty"`
}

type statusResponse struct {
	Authenticated   bool   `json:"authenticated"`
	UserID          string `json:"user_id"`
	TokenExpired    *bool  `json:"token_expired,omitempty"`
	HasRefreshToken *bool  `json:"has_refresh_token,omitempty"`
}

// handleRoot serves the service banner.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "pepper auth service",
		"version": s.version,
	})
}

// handleLogin initiates the OAuth 2.0 login flow with PKCE and redirects
// the browser to the provider's login page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.orchestrator.BeginLogin(nil)
	if err != nil {
		s.logger.Error("failed to initiate login", logging.Err(err))
		s.writeError(w, "server_error", "failed to initiate login", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback handles the OAuth callback from the provider, exchanging
// the authorization code for tokens.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		s.writeError(w, "invalid_request", "code and state query parameters are required", http.StatusBadRequest)
		return
	}

	result, err := s.orchestrator.CompleteLogin(r.Context(), code, state)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: "Authentication successful",
		UserID:  result.UserID,
		Scopes:  result.Scopes,
	})
}

// handleRefresh renews an access token using the stored refresh token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeUserRequest(w, r)
	if !ok {
		return
	}

	if err := s.orchestrator.Refresh(r.Context(), req.UserID); err != nil {
		s.writeAuthError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: "Token refreshed successfully",
		UserID:  req.UserID,
	})
}

// handleLogout removes the user's stored credentials.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeUserRequest(w, r)
	if !ok {
		return
	}

	if err := s.orchestrator.Logout(r.Context(), req.UserID); err != nil {
		s.writeAuthError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: "Logged out successfully",
		UserID:  req.UserID,
	})
}

// handleStatus reports authentication status. Always 200; an unknown user
// simply reads as unauthenticated.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	status := s.orchestrator.Status(userID)
	resp := statusResponse{
		Authenticated: status.Authenticated,
		UserID:        userID,
	}
	if status.Authenticated {
		resp.TokenExpired = &status.Expired
		resp.HasRefreshToken = &status.HasRefreshToken
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// decodeUserRequest parses a {user_id} request body, writing the error
// response itself when the body is unusable.
func (s *Server) decodeUserRequest(w http.ResponseWriter, r *http.Request) (userRequest, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid_request", "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.writeError(w, "invalid_request", "user_id is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// writeAuthError maps typed auth errors to HTTP responses. Token material
// never reaches a response body or log line.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var providerErr *identity.ProviderError

	switch {
	case errors.Is(err, auth.ErrInvalidState):
		s.writeError(w, "invalid_state", "invalid state parameter or code verifier expired", http.StatusBadRequest)
	case errors.Is(err, auth.ErrNotFound):
		s.writeError(w, "not_found", "no active session found for this user", http.StatusNotFound)
	case errors.Is(err, auth.ErrNoRefreshToken):
		s.writeError(w, "not_found", "no refresh token available for this user", http.StatusNotFound)
	case errors.Is(err, auth.ErrDecryptionFailure):
		// Unrecoverable record; from the caller's perspective the session
		// is gone and re-authentication is required.
		s.writeError(w, "not_found", "stored credentials are unusable, please authenticate again", http.StatusNotFound)
	case errors.As(err, &providerErr):
		s.writeError(w, providerErr.Code, providerErr.Description, http.StatusBadRequest)
	default:
		s.logger.Error("unexpected auth error", logging.Err(err))
		s.writeError(w, "server_error", "internal error", http.StatusInternalServerError)
	}
}

// writeError writes an OAuth-style error response.
func (s *Server) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	s.logger.Debug("request rejected", "code", errorCode, "status", statusCode)
	s.writeJSON(w, statusCode, errorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", logging.Err(err))
	}
}
