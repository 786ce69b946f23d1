// Package idp defines the identity provider boundary consumed by the auth
// flows and ships a Redis-backed implementation for development and tests.
//
// Provider errors are discriminated by [Code]. The login flow branches on
// [CodeInvalidCredential] to start email re-verification instead of failing.
package idp

import (
	"context"
	"time"
)

// Account is a principal known to the provider. ID never changes.
type Account struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Session is an authenticated account with its ID token.
type Session struct {
	Account   Account
	IDToken   string
	ExpiresAt time.Time
}

// AuthStateFunc receives the provider's auth state. A nil session means
// signed out.
type AuthStateFunc func(*Session)

// Provider is the identity provider consumed by the engine.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (Session, error)
	SignInWithCustomToken(ctx context.Context, token string) (Session, error)
	SignOut(ctx context.Context) error
	// SubscribeAuthState delivers the current state and then every change,
	// in order, until the returned function is called.
	SubscribeAuthState(fn AuthStateFunc) (unsubscribe func())
	CurrentSession() (Session, bool)
}

// Admin is the privileged side of the provider. It signs a user in without
// their password once they have proven control of their email.
type Admin interface {
	MintCustomToken(ctx context.Context, email string) (string, error)
}
