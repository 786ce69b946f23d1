package wanderauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/flows"
)

// LoginResult reports how a password sign-in ended.
type LoginResult struct {
	// Email is the auth email the identifier resolved to.
	Email string
	Kind  identifier.Kind
	// Session is set when the provider accepted the password.
	Session *idp.Session
	// OTPRequired is set when the provider rejected the credential. A code
	// was sent to CodeSentTo and ConfirmLoginOTP completes the sign-in.
	OTPRequired bool
	CodeSentTo  string
}

// Resolve turns a login identifier into its auth email without signing in.
func (e *Engine) Resolve(ctx context.Context, input string) (identifier.Resolution, error) {
	if e == nil || e.resolver == nil {
		return identifier.Resolution{}, ErrEngineNotReady
	}
	res, err := e.resolver.Resolve(ctx, input)
	if err != nil {
		mapped := mapResolveError(err)
		if errors.Is(mapped, ErrUsernameNotFound) {
			e.metricInc(MetricResolveNotFound)
		}
		return identifier.Resolution{}, mapped
	}
	return res, nil
}

// Login signs in with an email, phone number or username and a password.
//
// An invalid credential is not an error here: accounts imported from the
// legacy system carry credentials the provider cannot check, so a
// login-legacy-verify code is sent and the result reports OTPRequired. When
// only the code dispatch failed the result is returned with the error and
// ResendCode may retry.
func (e *Engine) Login(ctx context.Context, rawIdentifier, password string) (LoginResult, error) {
	if e == nil || e.resolver == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	res, err := flows.RunLogin(ctx, rawIdentifier, password, e.flowDeps.Login)
	if res == nil {
		return LoginResult{}, err
	}

	out := LoginResult{
		Email:       res.Email,
		Kind:        res.Kind,
		Session:     res.Session,
		OTPRequired: res.OTPRequired,
	}

	e.mu.Lock()
	e.pendingRegistration = nil
	if res.OTPRequired {
		out.CodeSentTo = res.Challenge.Target
		e.pendingLogin = flows.PendingLogin{
			AuthEmail:  res.Email,
			Generation: res.Challenge.Generation,
		}
	} else {
		e.pendingLogin = flows.PendingLogin{}
	}
	e.mu.Unlock()

	return out, err
}

// ConfirmLoginOTP completes a sign-in that Login answered with OTPRequired.
// A wrong code leaves the challenge open.
func (e *Engine) ConfirmLoginOTP(ctx context.Context, code string) (idp.Session, error) {
	if e == nil || e.otp == nil {
		return idp.Session{}, ErrEngineNotReady
	}

	e.mu.Lock()
	pending := e.pendingLogin
	e.mu.Unlock()

	sess, err := flows.RunConfirmLogin(ctx, code, pending, e.flowDeps.ConfirmLogin)
	if err != nil {
		return idp.Session{}, err
	}

	e.mu.Lock()
	if e.pendingLogin == pending {
		e.pendingLogin = flows.PendingLogin{}
	}
	e.mu.Unlock()
	return sess, nil
}

// AdminSignIn signs in an administrator and persists the admin session on
// this device, so later bootstrap passes skip the provider entirely. The
// account's profile must carry the admin role and, when Admin.Emails is
// set, its email must be listed.
func (e *Engine) AdminSignIn(ctx context.Context, rawIdentifier, password string) error {
	if e == nil || e.resolver == nil {
		return ErrEngineNotReady
	}
	if password == "" {
		return fmt.Errorf("%w: password", ErrMissingField)
	}

	res, err := e.Resolve(ctx, rawIdentifier)
	if err != nil {
		e.adminSignInFailed(ctx, "", "", err, "resolve")
		return err
	}

	if err := e.limiter.CheckLogin(ctx, res.Email); err != nil {
		mapped := mapLimiterError(err)
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", res.Email, mapped, nil)
		return mapped
	}

	sess, err := e.provider.SignIn(ctx, res.Email, password)
	if err != nil {
		if idp.IsCode(err, idp.CodeInvalidCredential) {
			if incErr := e.limiter.IncrementLogin(ctx, res.Email); incErr != nil {
				e.log.Warn(ctx, "count login attempt failed", "error", incErr)
			}
		}
		mapped := mapProviderError(err)
		e.adminSignInFailed(ctx, "", res.Email, mapped, "provider")
		return mapped
	}

	rec, found, err := e.profiles.Get(ctx, sess.Account.ID)
	if err != nil {
		mapped := mapStoreError(err)
		e.revokeProviderSession(ctx)
		e.adminSignInFailed(ctx, sess.Account.ID, res.Email, mapped, "profile")
		return mapped
	}
	if !found || !rec.IsAdmin() || !e.config.isAdminEmail(res.Email) {
		e.revokeProviderSession(ctx)
		e.adminSignInFailed(ctx, sess.Account.ID, res.Email, ErrNotAdmin, "role")
		return ErrNotAdmin
	}

	if err := e.local.SaveAdminSession(res.Email); err != nil {
		e.adminSignInFailed(ctx, sess.Account.ID, res.Email, err, "persist")
		return err
	}
	if err := e.limiter.ResetLogin(ctx, res.Email); err != nil {
		e.log.Warn(ctx, "reset login attempts failed", "error", err)
	}
	e.binding.AdoptSyntheticAdmin(res.Email)

	e.metricInc(MetricAdminSignIn)
	e.emitAudit(ctx, auditEventAdminSignIn, true, sess.Account.ID, res.Email, nil, nil)
	return nil
}

func (e *Engine) adminSignInFailed(ctx context.Context, accountID, email string, err error, reason string) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventAdminSignIn, false, accountID, email, err, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}

func (e *Engine) revokeProviderSession(ctx context.Context) {
	if err := e.provider.SignOut(ctx); err != nil {
		e.log.Warn(ctx, "sign out after rejected admin sign-in failed", "error", err)
	}
}
