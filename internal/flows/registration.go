package flows

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/otp"
	"github.com/MrEthical07/wanderauth/profile"
)

// RegistrationForm is the raw registration input.
type RegistrationForm struct {
	// Identifier is the email or phone number the account will sign in with.
	Identifier string
	// ContactEmail receives the verification code. Required when Identifier
	// is a phone number; ignored otherwise.
	ContactEmail string
	Name         string
	Mobile       string
	Username     string
	Password     string
}

// PendingRegistration is a validated form waiting for its code.
type PendingRegistration struct {
	AuthEmail    string
	ContactEmail string
	Synthesized  bool
	Name         string
	Mobile       string
	Username     string
	Password     string
	Generation   uint64
}

// RegistrationMetrics carries metric IDs needed by the registration flows.
type RegistrationMetrics struct {
	RegistrationStarted int
	RegistrationSuccess int
	RegistrationFailure int
}

// RegistrationEvents carries audit event names used by the registration flows.
type RegistrationEvents struct {
	RegistrationStarted string
	RegistrationSuccess string
	RegistrationFailure string
}

// RegistrationErrors carries host-level sentinel errors used by the
// registration flows.
type RegistrationErrors struct {
	EngineNotReady    error
	MissingField      error
	InvalidIdentifier error
	InvalidUsername   error
	UsernameTaken     error
	WeakPassword      error
	NoChallenge       error
}

// StartRegistrationDeps captures registration form dependencies.
type StartRegistrationDeps struct {
	PlaceholderDomain string
	MinPasswordLength int
	RequireUsername   bool
	UsernamePattern   *regexp.Regexp

	// UsernameTaken reports whether a profile already holds username. The
	// check and the later profile write are not atomic.
	UsernameTaken func(ctx context.Context, username string) (bool, error)
	Challenge     ChallengeOps

	MapStoreError func(error) error
	MapOTPError   func(error) error

	Hooks            Hooks
	Metrics          RegistrationMetrics
	Events           RegistrationEvents
	Errors           RegistrationErrors
	ChallengeMetrics ChallengeMetrics
	ChallengeEvents  ChallengeEvents
}

// RunStartRegistration validates form and sends a register-verify code to
// the contact email. Validation failures never reach the provider. When only
// the code dispatch fails the pending registration is returned alongside
// the error.
func RunStartRegistration(ctx context.Context, form RegistrationForm, deps StartRegistrationDeps) (*PendingRegistration, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	hooks := deps.Hooks
	if !deps.Challenge.ready() || deps.MapOTPError == nil || deps.MapStoreError == nil {
		return nil, deps.Errors.EngineNotReady
	}

	pending, err := validateRegistration(form, deps)
	if err != nil {
		hooks.MetricInc(deps.Metrics.RegistrationFailure)
		hooks.EmitAudit(ctx, deps.Events.RegistrationFailure, false, "", "", err, reason("validation"))
		return nil, err
	}

	if pending.Username != "" && deps.UsernameTaken != nil {
		taken, err := deps.UsernameTaken(ctx, pending.Username)
		if err != nil {
			mapped := deps.MapStoreError(err)
			hooks.MetricInc(deps.Metrics.RegistrationFailure)
			hooks.EmitAudit(ctx, deps.Events.RegistrationFailure, false, "", pending.AuthEmail, mapped, reason("username_lookup"))
			return nil, mapped
		}
		if taken {
			hooks.MetricInc(deps.Metrics.RegistrationFailure)
			hooks.EmitAudit(ctx, deps.Events.RegistrationFailure, false, "", pending.AuthEmail, deps.Errors.UsernameTaken, reason("username_taken"))
			return nil, deps.Errors.UsernameTaken
		}
	}

	ch, issued, err := issueChallenge(ctx, deps.Challenge, pending.ContactEmail, otp.PurposeRegisterVerify,
		deps.MapOTPError, hooks, deps.ChallengeMetrics, deps.ChallengeEvents)
	if !issued {
		return nil, err
	}
	pending.Generation = ch.Generation

	hooks.MetricInc(deps.Metrics.RegistrationStarted)
	hooks.EmitAudit(ctx, deps.Events.RegistrationStarted, true, "", pending.AuthEmail, nil, func() map[string]string {
		return map[string]string{"synthesized": fmt.Sprint(pending.Synthesized)}
	})
	return pending, err
}

func validateRegistration(form RegistrationForm, deps StartRegistrationDeps) (*PendingRegistration, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", deps.Errors.MissingField)
	}
	if form.Password == "" {
		return nil, fmt.Errorf("%w: password", deps.Errors.MissingField)
	}
	if len(form.Password) < deps.MinPasswordLength {
		return nil, fmt.Errorf("%w: at least %d characters required", deps.Errors.WeakPassword, deps.MinPasswordLength)
	}

	id := strings.TrimSpace(form.Identifier)
	if id == "" {
		return nil, fmt.Errorf("%w: identifier", deps.Errors.MissingField)
	}

	p := &PendingRegistration{
		Name:     name,
		Mobile:   strings.TrimSpace(form.Mobile),
		Username: profile.NormalizeUsername(form.Username),
		Password: form.Password,
	}

	switch identifier.Classify(id) {
	case identifier.KindEmail:
		p.AuthEmail = id
		p.ContactEmail = id
	case identifier.KindPhone:
		contact := strings.TrimSpace(form.ContactEmail)
		if contact == "" {
			return nil, fmt.Errorf("%w: contact email", deps.Errors.MissingField)
		}
		if !identifier.IsEmail(contact) {
			return nil, fmt.Errorf("%w: contact email %q", deps.Errors.InvalidIdentifier, contact)
		}
		p.AuthEmail = identifier.SynthesizeEmail(id, deps.PlaceholderDomain)
		p.ContactEmail = contact
		p.Synthesized = true
		if p.Mobile == "" {
			p.Mobile = id
		}
	default:
		return nil, fmt.Errorf("%w: register with an email address or phone number", deps.Errors.InvalidIdentifier)
	}

	if p.Username == "" {
		if deps.RequireUsername {
			return nil, fmt.Errorf("%w: username", deps.Errors.MissingField)
		}
		return p, nil
	}
	if deps.UsernamePattern != nil && !deps.UsernamePattern.MatchString(p.Username) {
		return nil, fmt.Errorf("%w: %q", deps.Errors.InvalidUsername, p.Username)
	}
	// A username that classifies as an email or phone could never be
	// resolved back to its profile at login.
	if identifier.Classify(p.Username) != identifier.KindUsername {
		return nil, fmt.Errorf("%w: %q looks like an email or phone number", deps.Errors.InvalidUsername, p.Username)
	}
	return p, nil
}

// ConfirmRegistrationDeps captures registration completion dependencies.
type ConfirmRegistrationDeps struct {
	Challenge    ChallengeOps
	SignUp       func(ctx context.Context, email, password, displayName string) (idp.Session, error)
	WriteProfile func(ctx context.Context, accountID string, rec profile.Record) error
	Now          func() time.Time

	MapOTPError      func(error) error
	MapProviderError func(error) error
	MapStoreError    func(error) error

	Hooks            Hooks
	Metrics          RegistrationMetrics
	Events           RegistrationEvents
	Errors           RegistrationErrors
	ChallengeMetrics ChallengeMetrics
	ChallengeEvents  ChallengeEvents
}

// RunConfirmRegistration verifies code, creates the account and writes its
// initial profile. If the profile write fails the account exists and is
// signed in; the session is returned together with the error and the
// session binding serves a synthesized profile until a record appears.
func RunConfirmRegistration(ctx context.Context, code string, pending PendingRegistration, deps ConfirmRegistrationDeps) (idp.Session, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	hooks := deps.Hooks
	if !deps.Challenge.ready() ||
		deps.SignUp == nil ||
		deps.WriteProfile == nil ||
		deps.MapOTPError == nil ||
		deps.MapProviderError == nil ||
		deps.MapStoreError == nil {
		return idp.Session{}, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if code == "" {
		return idp.Session{}, fmt.Errorf("%w: code", deps.Errors.MissingField)
	}
	if pending.AuthEmail == "" {
		return idp.Session{}, deps.Errors.NoChallenge
	}

	if _, err := verifyChallenge(ctx, deps.Challenge, code, otp.PurposeRegisterVerify, pending.Generation,
		deps.Errors.NoChallenge, deps.MapOTPError, hooks, deps.ChallengeMetrics, deps.ChallengeEvents); err != nil {
		return idp.Session{}, err
	}

	sess, err := deps.SignUp(ctx, pending.AuthEmail, pending.Password, pending.Name)
	if err != nil {
		mapped := deps.MapProviderError(err)
		hooks.MetricInc(deps.Metrics.RegistrationFailure)
		hooks.EmitAudit(ctx, deps.Events.RegistrationFailure, false, "", pending.AuthEmail, mapped, reason("sign_up"))
		return idp.Session{}, mapped
	}

	rec := profile.New(profile.Draft{
		AuthEmail:   pending.AuthEmail,
		Name:        pending.Name,
		Mobile:      pending.Mobile,
		Username:    pending.Username,
		RealEmail:   pending.ContactEmail,
		Synthesized: pending.Synthesized,
		CreatedAt:   deps.Now(),
	})
	if err := deps.WriteProfile(ctx, sess.Account.ID, rec); err != nil {
		mapped := deps.MapStoreError(err)
		hooks.MetricInc(deps.Metrics.RegistrationFailure)
		hooks.EmitAudit(ctx, deps.Events.RegistrationFailure, false, sess.Account.ID, pending.AuthEmail, mapped, reason("profile_write"))
		return sess, mapped
	}

	hooks.MetricInc(deps.Metrics.RegistrationSuccess)
	hooks.EmitAudit(ctx, deps.Events.RegistrationSuccess, true, sess.Account.ID, pending.AuthEmail, nil, func() map[string]string {
		return map[string]string{"synthesized": fmt.Sprint(pending.Synthesized)}
	})
	return sess, nil
}
