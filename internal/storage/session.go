package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionStore exposes a gorilla session as a Store. Values live only as long as the
// browser session, which is the durability the buy-now descriptor needs.
type SessionStore struct {
	store sessions.Store
	name  string
}

// NewSessionStore wraps a gorilla session store; name is the session cookie name
func NewSessionStore(store sessions.Store, name string) *SessionStore {
	return &SessionStore{store: store, name: name}
}

// ForRequest binds the store to one request/response pair
func (s *SessionStore) ForRequest(w http.ResponseWriter, r *http.Request) Store {
	return &requestSession{store: s.store, name: s.name, w: w, r: r}
}

type requestSession struct {
	store sessions.Store
	name  string
	w     http.ResponseWriter
	r     *http.Request
}

func (rs *requestSession) session() (*sessions.Session, error) {
	session, err := rs.store.Get(rs.r, rs.name)
	if session == nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	// An undecodable cookie yields a fresh session, which is what callers want.
	return session, nil
}

func (rs *requestSession) Get(ctx context.Context, key string) ([]byte, error) {
	session, err := rs.session()
	if err != nil {
		return nil, err
	}
	value, ok := session.Values[key].(string)
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(value), nil
}

func (rs *requestSession) Set(ctx context.Context, key string, value []byte) error {
	session, err := rs.session()
	if err != nil {
		return err
	}
	session.Values[key] = string(value)
	if err := session.Save(rs.r, rs.w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (rs *requestSession) Remove(ctx context.Context, key string) error {
	session, err := rs.session()
	if err != nil {
		return err
	}
	if _, ok := session.Values[key]; !ok {
		return nil
	}
	delete(session.Values, key)
	if err := session.Save(rs.r, rs.w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
