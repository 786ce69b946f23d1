// Package mail delivers one-time codes to a target email address.
package mail

import (
	"context"
	"errors"
	"strings"
)

// Purpose names why a code was issued. It selects the message template.
type Purpose string

const (
	PurposeLoginLegacyVerify Purpose = "login-legacy-verify"
	PurposeRegisterVerify    Purpose = "register-verify"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLoginLegacyVerify || p == PurposeRegisterVerify
}

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrUnknownPurpose   = errors.New("unknown code purpose")
)

// Dispatcher sends a code to target. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	SendCode(ctx context.Context, target, code string, purpose Purpose) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, target, code string, purpose Purpose) error

func (f DispatcherFunc) SendCode(ctx context.Context, target, code string, purpose Purpose) error {
	return f(ctx, target, code, purpose)
}

func checkRecipient(target string) error {
	if target == "" || strings.ContainsAny(target, "\r\n") || !strings.Contains(target, "@") {
		return ErrInvalidRecipient
	}
	return nil
}
