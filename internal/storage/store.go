// Package storage provides the key-value persistence used for carts and checkout state.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when a key has no value
var ErrNotFound = errors.New("storage: key not found")

// Store is a namespaced key-value store with get/set/remove semantics
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// namespaced prefixes every key with a fixed namespace
type namespaced struct {
	store  Store
	prefix string
}

// Namespaced wraps store so that every key lives under prefix.
// Nested namespaces are joined with ':'.
func Namespaced(store Store, prefix string) Store {
	prefix = strings.Trim(prefix, ":")
	if inner, ok := store.(*namespaced); ok {
		return &namespaced{store: inner.store, prefix: inner.prefix + prefix + ":"}
	}
	return &namespaced{store: store, prefix: prefix + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.store.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.store.Remove(ctx, n.prefix+key)
}
