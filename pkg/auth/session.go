// Package auth provides the bearer-credential gate applied to every route
// and the primitives shared by the credential verifiers: the per-request
// Session, token parsing, and EIP-191 proof recovery.
package auth

import (
	"context"
	"errors"
)

// Session is the per-request authenticated identity derived from a bearer
// credential. It is never persisted; its lifetime is one request.
type Session struct {
	// Subject is the provider-issued stable identifier (e.g. a DID).
	Subject string
	// AccountAddress is the user's wallet address, recorded on the ledger
	// as the document owner.
	AccountAddress string
}

// Verifier turns a bearer token into a Session or an authentication failure.
//
// All verification failures map to the same external status (unauthorized)
// but are distinguishable internally via the sentinel errors below.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Session, error)
}

var (
	// ErrMissingCredential means the Authorization header or its
	// "Bearer " prefix was absent.
	ErrMissingCredential = errors.New("missing bearer credential")
	// ErrInvalidToken means the credential was present but failed validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrProviderUnreachable means the identity provider could not be reached.
	ErrProviderUnreachable = errors.New("identity provider unreachable")
)

type contextKey string

// ContextKeySession is the context key for the authenticated session
const ContextKeySession contextKey = "session"

// WithSession adds the session to the context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ContextKeySession, s)
}

// SessionFromContext retrieves the session from the context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ContextKeySession).(*Session)
	return s, ok
}
