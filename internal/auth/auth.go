// Package auth answers "is the shopper logged in" for the rest of the storefront.
// Token issuance and signature validation belong to the external auth backend.
package auth

import (
	"context"
)

type contextKey string

const credentialContextKey contextKey = "credential"

// User is the identity attached to a credential
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Credential is an opaque bearer token plus the user it belongs to
type Credential struct {
	Token string
	User  User
}

// Authenticator is the single place that decides whether a request is authenticated
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
	Credential(ctx context.Context) (Credential, bool)
}

// WithCredential returns a copy of ctx carrying cred
func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

// CredentialFromContext returns the credential stored by WithCredential
func CredentialFromContext(ctx context.Context) (Credential, bool) {
	cred, ok := ctx.Value(credentialContextKey).(Credential)
	if !ok || cred.Token == "" {
		return Credential{}, false
	}
	return cred, true
}

// ContextAuthenticator reads the credential placed on the context by BearerAuthenticator.Middleware
type ContextAuthenticator struct{}

func (ContextAuthenticator) IsAuthenticated(ctx context.Context) bool {
	_, ok := CredentialFromContext(ctx)
	return ok
}

func (ContextAuthenticator) Credential(ctx context.Context) (Credential, bool) {
	return CredentialFromContext(ctx)
}
