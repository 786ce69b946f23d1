package wanderauth

import (
	"context"

	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/flows"
)

// RegistrationInput is the sign-up form.
type RegistrationInput struct {
	// Identifier is the email address or phone number the account signs in
	// with. A phone number gets a placeholder auth email.
	Identifier string
	// ContactEmail receives the verification code and is stored as the
	// profile's real email. Required for phone sign-ups, ignored otherwise.
	ContactEmail string
	Name         string
	Mobile       string
	Username     string
	Password     string
}

// StartRegistration validates in and sends a register-verify code. Nothing
// is created until ConfirmRegistration succeeds. A dispatch failure keeps
// the form pending so ResendCode can retry.
func (e *Engine) StartRegistration(ctx context.Context, in RegistrationInput) error {
	if e == nil || e.otp == nil {
		return ErrEngineNotReady
	}

	pending, err := flows.RunStartRegistration(ctx, flows.RegistrationForm{
		Identifier:   in.Identifier,
		ContactEmail: in.ContactEmail,
		Name:         in.Name,
		Mobile:       in.Mobile,
		Username:     in.Username,
		Password:     in.Password,
	}, e.flowDeps.StartRegistration)
	if pending == nil {
		return err
	}

	e.mu.Lock()
	e.pendingLogin = flows.PendingLogin{}
	e.pendingRegistration = pending
	e.mu.Unlock()
	return err
}

// ConfirmRegistration checks code, creates the account and writes its
// profile. The new account is signed in.
//
// If the account was created but the profile write failed, the session is
// returned together with the error.
func (e *Engine) ConfirmRegistration(ctx context.Context, code string) (idp.Session, error) {
	if e == nil || e.otp == nil {
		return idp.Session{}, ErrEngineNotReady
	}

	e.mu.Lock()
	pending := e.pendingRegistration
	e.mu.Unlock()

	var form flows.PendingRegistration
	if pending != nil {
		form = *pending
	}
	sess, err := flows.RunConfirmRegistration(ctx, code, form, e.flowDeps.ConfirmRegistration)
	if sess.Account.ID == "" {
		return idp.Session{}, err
	}

	e.mu.Lock()
	if e.pendingRegistration == pending {
		e.pendingRegistration = nil
	}
	e.mu.Unlock()
	return sess, err
}
