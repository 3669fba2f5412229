package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

type contextKey string

// ShopperSessionKey is the session value identifying the shopper's cart
const ShopperSessionKey = "cart_id"

const ownerContextKey contextKey = "owner"

// SessionMiddleware assigns every visitor a stable shopper id kept in the session cookie
type SessionMiddleware struct {
	store  sessions.Store
	name   string
	logger *zap.Logger
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(store sessions.Store, name string, logger *zap.Logger) *SessionMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionMiddleware{
		store:  store,
		name:   name,
		logger: logger,
	}
}

// Shopper loads or creates the shopper id and stores it on the request context
func (m *SessionMiddleware) Shopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An undecodable cookie still yields a usable new session
		session, err := m.store.Get(r, m.name)
		if session == nil {
			m.logger.Error("failed to load session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Session unavailable")
			return
		}

		owner, ok := session.Values[ShopperSessionKey].(string)
		if !ok || owner == "" {
			owner = uuid.NewString()
			session.Values[ShopperSessionKey] = owner
			if err := session.Save(r, w); err != nil {
				m.logger.Error("failed to save session", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Session unavailable")
				return
			}
		}

		// Security headers for the JSON API
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// WithOwner returns a copy of ctx carrying the shopper id
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}

// OwnerFromContext returns the shopper id set by SessionMiddleware.Shopper
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}
