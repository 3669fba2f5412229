package handlers

import (
	"errors"
	"net/http"
	"strings"

	"digital-concert-hall/internal/auth"
	"digital-concert-hall/internal/models"

	"go.uber.org/zap"
)

// SessionHandler lets the login page hand its bearer token to the server session
type SessionHandler struct {
	auth   *auth.BearerAuthenticator
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(authenticator *auth.BearerAuthenticator, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		auth:   authenticator,
		logger: logger,
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
}

// Me reports whether the request carries a usable credential
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.auth.Credential(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &cred.User}, h.logger)
}

// StoreToken keeps the token in the session so later page requests are authenticated
func (h *SessionHandler) StoreToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeServiceError(w, r, models.NewValidationError("token", "token is required"), nil, h.logger)
		return
	}

	if err := h.auth.StoreToken(w, r, req.Token); err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedToken):
			err = models.NewValidationError("token", "token is malformed")
		case errors.Is(err, auth.ErrTokenExpired):
			err = &models.AuthRequiredError{Expired: true}
		}
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearToken logs the shopper out of this session
func (h *SessionHandler) ClearToken(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.ClearToken(w, r); err != nil {
		writeServiceError(w, r, err, nil, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
