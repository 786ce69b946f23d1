package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/otp"
)

// LoginResult is the outcome of a password sign-in. Exactly one of Session
// and OTPRequired is set on success.
type LoginResult struct {
	Email       string
	Kind        identifier.Kind
	Session     *idp.Session
	OTPRequired bool
	Challenge   otp.Challenge
}

// LoginMetrics carries metric IDs needed by the login flows.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	LoginOTPFallback int
	ResolveNotFound  int
}

// LoginEvents carries audit event names used by the login flows.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	LoginOTPFallback string
}

// LoginErrors carries host-level sentinel errors used by the login flows.
type LoginErrors struct {
	EngineNotReady   error
	MissingField     error
	UsernameNotFound error
	NoChallenge      error
}

// LoginDeps captures password sign-in dependencies.
type LoginDeps struct {
	Resolve            func(context.Context, string) (identifier.Resolution, error)
	CheckLoginRate     func(context.Context, string) error
	IncrementLoginRate func(context.Context, string) error
	ResetLoginRate     func(context.Context, string) error
	SignIn             func(ctx context.Context, email, password string) (idp.Session, error)
	// ContactEmail returns where codes for the auth email should be sent.
	ContactEmail func(context.Context, string) (string, error)
	Challenge    ChallengeOps

	MapResolveError  func(error) error
	MapLimiterError  func(error) error
	MapProviderError func(error) error
	MapOTPError      func(error) error

	Hooks            Hooks
	Metrics          LoginMetrics
	Events           LoginEvents
	Errors           LoginErrors
	ChallengeMetrics ChallengeMetrics
	ChallengeEvents  ChallengeEvents
}

// RunLogin resolves the identifier and signs in with password. An
// invalid-credential outcome is not returned as an error: it starts a
// login-legacy-verify challenge and reports OTPRequired. When only the code
// dispatch fails the result is returned alongside the error so the caller
// can offer a resend.
func RunLogin(ctx context.Context, rawIdentifier, password string, deps LoginDeps) (*LoginResult, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	hooks := deps.Hooks
	if deps.Resolve == nil ||
		deps.SignIn == nil ||
		!deps.Challenge.ready() ||
		deps.MapResolveError == nil ||
		deps.MapProviderError == nil ||
		deps.MapOTPError == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if strings.TrimSpace(rawIdentifier) == "" {
		return nil, fmt.Errorf("%w: identifier", deps.Errors.MissingField)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password", deps.Errors.MissingField)
	}

	res, err := deps.Resolve(ctx, rawIdentifier)
	if err != nil {
		mapped := deps.MapResolveError(err)
		if errors.Is(mapped, deps.Errors.UsernameNotFound) {
			hooks.MetricInc(deps.Metrics.ResolveNotFound)
		}
		hooks.MetricInc(deps.Metrics.LoginFailure)
		hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", mapped, reason("resolve"))
		return nil, mapped
	}

	if deps.CheckLoginRate != nil && deps.MapLimiterError != nil {
		if err := deps.CheckLoginRate(ctx, res.Email); err != nil {
			mapped := deps.MapLimiterError(err)
			hooks.MetricInc(deps.Metrics.LoginRateLimited)
			hooks.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", res.Email, mapped, nil)
			return nil, mapped
		}
	}

	sess, err := deps.SignIn(ctx, res.Email, password)
	password = ""
	if err == nil {
		if deps.ResetLoginRate != nil {
			if err := deps.ResetLoginRate(ctx, res.Email); err != nil {
				hooks.Warn(ctx, "reset login attempts failed", "error", err)
			}
		}
		hooks.MetricInc(deps.Metrics.LoginSuccess)
		hooks.EmitAudit(ctx, deps.Events.LoginSuccess, true, sess.Account.ID, res.Email, nil, func() map[string]string {
			return map[string]string{"method": "password", "identifier_kind": res.Kind.String()}
		})
		return &LoginResult{Email: res.Email, Kind: res.Kind, Session: &sess}, nil
	}

	if !idp.IsCode(err, idp.CodeInvalidCredential) {
		mapped := deps.MapProviderError(err)
		hooks.MetricInc(deps.Metrics.LoginFailure)
		hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, "", res.Email, mapped, reason("provider"))
		return nil, mapped
	}

	// Invalid credential means a legacy account that has to prove control
	// of its email before it can sign in.
	if deps.IncrementLoginRate != nil {
		if err := deps.IncrementLoginRate(ctx, res.Email); err != nil {
			hooks.Warn(ctx, "count login attempt failed", "error", err)
		}
	}
	hooks.MetricInc(deps.Metrics.LoginOTPFallback)
	hooks.EmitAudit(ctx, deps.Events.LoginOTPFallback, false, "", res.Email, nil, func() map[string]string {
		return map[string]string{"identifier_kind": res.Kind.String()}
	})

	target := res.Email
	if deps.ContactEmail != nil {
		contact, err := deps.ContactEmail(ctx, res.Email)
		if err != nil {
			hooks.Warn(ctx, "contact email lookup failed, using auth email", "error", err)
		} else if contact != "" {
			target = contact
		}
	}

	ch, issued, err := issueChallenge(ctx, deps.Challenge, target, otp.PurposeLoginLegacyVerify,
		deps.MapOTPError, hooks, deps.ChallengeMetrics, deps.ChallengeEvents)
	if !issued {
		return nil, err
	}
	return &LoginResult{
		Email:       res.Email,
		Kind:        res.Kind,
		OTPRequired: true,
		Challenge:   ch,
	}, err
}

// PendingLogin identifies the challenge a legacy sign-in is waiting on.
type PendingLogin struct {
	AuthEmail  string
	Generation uint64
}

// ConfirmLoginDeps captures legacy sign-in confirmation dependencies.
type ConfirmLoginDeps struct {
	Challenge             ChallengeOps
	MintCustomToken       func(ctx context.Context, email string) (string, error)
	SignInWithCustomToken func(ctx context.Context, token string) (idp.Session, error)
	ResetLoginRate        func(context.Context, string) error

	MapOTPError      func(error) error
	MapProviderError func(error) error

	Hooks            Hooks
	Metrics          LoginMetrics
	Events           LoginEvents
	Errors           LoginErrors
	ChallengeMetrics ChallengeMetrics
	ChallengeEvents  ChallengeEvents
}

// RunConfirmLogin verifies code against the pending legacy challenge and,
// on a match, signs the account in through the provider's administrative
// token path.
func RunConfirmLogin(ctx context.Context, code string, pending PendingLogin, deps ConfirmLoginDeps) (idp.Session, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	hooks := deps.Hooks
	if !deps.Challenge.ready() ||
		deps.MintCustomToken == nil ||
		deps.SignInWithCustomToken == nil ||
		deps.MapOTPError == nil ||
		deps.MapProviderError == nil {
		return idp.Session{}, deps.Errors.EngineNotReady
	}
	if code == "" {
		return idp.Session{}, fmt.Errorf("%w: code", deps.Errors.MissingField)
	}
	if pending.AuthEmail == "" {
		return idp.Session{}, deps.Errors.NoChallenge
	}

	if _, err := verifyChallenge(ctx, deps.Challenge, code, otp.PurposeLoginLegacyVerify, pending.Generation,
		deps.Errors.NoChallenge, deps.MapOTPError, hooks, deps.ChallengeMetrics, deps.ChallengeEvents); err != nil {
		return idp.Session{}, err
	}

	token, err := deps.MintCustomToken(ctx, pending.AuthEmail)
	if err != nil {
		mapped := deps.MapProviderError(err)
		hooks.MetricInc(deps.Metrics.LoginFailure)
		hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, "", pending.AuthEmail, mapped, reason("mint_token"))
		return idp.Session{}, mapped
	}

	sess, err := deps.SignInWithCustomToken(ctx, token)
	if err != nil {
		mapped := deps.MapProviderError(err)
		hooks.MetricInc(deps.Metrics.LoginFailure)
		hooks.EmitAudit(ctx, deps.Events.LoginFailure, false, "", pending.AuthEmail, mapped, reason("custom_token"))
		return idp.Session{}, mapped
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, pending.AuthEmail); err != nil {
			hooks.Warn(ctx, "reset login attempts failed", "error", err)
		}
	}
	hooks.MetricInc(deps.Metrics.LoginSuccess)
	hooks.EmitAudit(ctx, deps.Events.LoginSuccess, true, sess.Account.ID, pending.AuthEmail, nil, func() map[string]string {
		return map[string]string{"method": "email_code"}
	})
	return sess, nil
}
