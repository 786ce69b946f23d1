package wanderauth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/flows"
	"github.com/MrEthical07/wanderauth/otp"
	"github.com/MrEthical07/wanderauth/profile"
	"github.com/MrEthical07/wanderauth/session"
)

// OpenModal starts a fresh form session. Any outstanding challenge and
// pending form are discarded.
func (e *Engine) OpenModal() {
	if e == nil || e.otp == nil {
		return
	}
	e.resetPending()
	e.otp.Begin()
}

// CloseModal abandons the outstanding challenge. Codes already sent stop
// verifying and in-flight dispatches are ignored. It reports whether a
// challenge was outstanding.
func (e *Engine) CloseModal() bool {
	if e == nil || e.otp == nil {
		return false
	}
	cur, hadChallenge := e.otp.Current()
	e.resetPending()
	if !e.otp.Abandon() {
		return false
	}
	if hadChallenge {
		e.metricInc(MetricOTPAbandoned)
		e.emitAudit(context.Background(), auditEventOTPAbandoned, true, "", cur.Target, nil, func() map[string]string {
			return map[string]string{"purpose": string(cur.Purpose)}
		})
	}
	return true
}

// ResendCode sends a new code for the outstanding challenge. The previous
// code stops verifying.
func (e *Engine) ResendCode(ctx context.Context) error {
	if e == nil || e.otp == nil {
		return ErrEngineNotReady
	}

	ch, err := flows.RunResend(ctx, e.flowDeps.Resend)
	if ch.Generation == 0 {
		return err
	}

	e.mu.Lock()
	switch ch.Purpose {
	case otp.PurposeLoginLegacyVerify:
		if e.pendingLogin.AuthEmail != "" {
			e.pendingLogin.Generation = ch.Generation
		}
	case otp.PurposeRegisterVerify:
		if e.pendingRegistration != nil {
			next := *e.pendingRegistration
			next.Generation = ch.Generation
			e.pendingRegistration = &next
		}
	}
	e.mu.Unlock()
	return err
}

// SignOut ends the provider session and forgets any persisted admin
// session on this device.
func (e *Engine) SignOut(ctx context.Context) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	acct, _ := e.binding.CurrentAccount()
	e.resetPending()
	e.otp.Abandon()

	if err := e.local.ClearPersistedSession(); err != nil {
		e.log.Warn(ctx, "clear persisted session failed", "error", err)
	}
	e.binding.Clear()

	err := e.provider.SignOut(ctx)
	if e.bootstrap != nil && e.bootstrap.Resume() {
		e.log.Debug(ctx, "persisted admin session ended, following provider auth state")
	}
	if err != nil {
		mapped := mapProviderError(err)
		e.emitAudit(ctx, auditEventSignOut, false, acct.ID, acct.Email, mapped, nil)
		return mapped
	}

	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, true, acct.ID, acct.Email, nil, nil)
	return nil
}

// CurrentAccount returns the signed-in account. A persisted admin session
// reports session.SyntheticAdminID.
func (e *Engine) CurrentAccount() (idp.Account, bool) {
	if e == nil || e.binding == nil {
		return idp.Account{}, false
	}
	return e.binding.CurrentAccount()
}

// Profile returns the signed-in account's profile once it has loaded.
func (e *Engine) Profile() (profile.Record, bool) {
	if e == nil || e.binding == nil {
		return profile.Record{}, false
	}
	return e.binding.Profile()
}

func (e *Engine) Session() session.State {
	if e == nil || e.binding == nil {
		return session.State{}
	}
	return e.binding.Snapshot()
}

// ChallengeState returns where the verification modal is in its lifecycle.
func (e *Engine) ChallengeState() otp.State {
	if e == nil || e.otp == nil {
		return otp.StateIdle
	}
	return e.otp.State()
}

// PendingChallenge describes the outstanding challenge without its code.
func (e *Engine) PendingChallenge() (otp.Challenge, bool) {
	if e == nil || e.otp == nil {
		return otp.Challenge{}, false
	}
	return e.otp.Current()
}

// VerifyIDToken checks an ID token issued by the built-in provider and
// returns the account it names. Engines built with an external provider
// return ErrEngineNotReady; verify those tokens with the provider itself.
func (e *Engine) VerifyIDToken(token string) (idp.Account, error) {
	if e == nil || e.tokens == nil {
		return idp.Account{}, ErrEngineNotReady
	}
	claims, err := e.tokens.ParseIDToken(token)
	if err != nil {
		return idp.Account{}, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}
	return idp.Account{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}
