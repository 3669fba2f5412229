package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// SessionTokenKey is the session value holding a token handed over by the auth backend
const SessionTokenKey = "auth_token"

var (
	ErrMalformedToken = errors.New("malformed bearer token")
	ErrTokenExpired   = errors.New("bearer token expired")
)

// BearerAuthenticator extracts a bearer token from the Authorization header or the
// shopper's session and places a Credential on the request context.
type BearerAuthenticator struct {
	ContextAuthenticator

	store       sessions.Store
	sessionName string
	logger      *zap.Logger
	now         func() time.Time
}

// NewBearerAuthenticator creates an authenticator backed by the given session store
func NewBearerAuthenticator(store sessions.Store, sessionName string, logger *zap.Logger) *BearerAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BearerAuthenticator{
		store:       store,
		sessionName: sessionName,
		logger:      logger,
		now:         time.Now,
	}
}

// Middleware loads the credential for the request. Requests without a usable token
// continue anonymously.
func (a *BearerAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = a.sessionToken(r)
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.parse(token)
		if err != nil {
			a.logger.Debug("ignoring bearer token", zap.Error(err), zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}

		cred := Credential{Token: token, User: userFrom(r, claims)}
		next.ServeHTTP(w, r.WithContext(WithCredential(r.Context(), cred)))
	})
}

// StoreToken keeps a token in the shopper's session so later page loads are authenticated
func (a *BearerAuthenticator) StoreToken(w http.ResponseWriter, r *http.Request, token string) error {
	token = strings.TrimSpace(token)
	if _, err := a.parse(token); err != nil {
		return err
	}

	session, _ := a.store.Get(r, a.sessionName)
	if session == nil {
		return fmt.Errorf("failed to load session")
	}
	session.Values[SessionTokenKey] = token
	return session.Save(r, w)
}

// ClearToken forgets the session token
func (a *BearerAuthenticator) ClearToken(w http.ResponseWriter, r *http.Request) error {
	session, _ := a.store.Get(r, a.sessionName)
	if session == nil {
		return fmt.Errorf("failed to load session")
	}
	delete(session.Values, SessionTokenKey)
	return session.Save(r, w)
}

// parse checks that token is a structurally valid JWT whose exp, if present, lies in the future.
// The signature is not verified here.
func (a *BearerAuthenticator) parse(token string) (jwt.MapClaims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrMalformedToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if !claims.VerifyExpiresAt(a.now().Unix(), false) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func (a *BearerAuthenticator) sessionToken(r *http.Request) string {
	if a.store == nil {
		return ""
	}
	session, _ := a.store.Get(r, a.sessionName)
	if session == nil {
		return ""
	}
	token, _ := session.Values[SessionTokenKey].(string)
	return token
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// userFrom prefers the X-User header forwarded by the auth backend and falls back to claims
func userFrom(r *http.Request, claims jwt.MapClaims) User {
	if raw := r.Header.Get("X-User"); raw != "" {
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID != "" {
			return user
		}
	}

	user := User{}
	user.ID, _ = claims["sub"].(string)
	user.Email, _ = claims["email"].(string)
	user.Name, _ = claims["name"].(string)
	return user
}
