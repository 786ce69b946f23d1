package wanderauth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/wanderauth/docstore"
	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/rate"
	"github.com/MrEthical07/wanderauth/otp"
)

var (
	// ErrEngineNotReady is returned by an Engine that was not built by a Builder.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrValidation is the parent of every form-level rejection. Errors that
	// match it never reached the provider.
	ErrValidation = errors.New("validation failed")
	// ErrMissingField reports an empty required input.
	ErrMissingField = fmt.Errorf("%w: missing required field", ErrValidation)
	// ErrInvalidIdentifier reports an identifier of the wrong kind for the form.
	ErrInvalidIdentifier = fmt.Errorf("%w: invalid identifier", ErrValidation)
	// ErrInvalidUsername reports a username outside the allowed alphabet or length.
	ErrInvalidUsername = fmt.Errorf("%w: invalid username", ErrValidation)
	// ErrUsernameTaken reports a username already held by another profile.
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", ErrValidation)
	// ErrWeakPassword reports a password the provider refused.
	ErrWeakPassword = fmt.Errorf("%w: password too weak", ErrValidation)

	// ErrUsernameNotFound is returned when no profile carries the username.
	ErrUsernameNotFound = identifier.ErrNotFound
	// ErrLookup wraps a transient failure of the username lookup. The
	// *identifier.LookupError stays reachable through errors.As.
	ErrLookup = errors.New("identifier lookup failed")

	// ErrInvalidCode is returned for a code that does not match the
	// outstanding challenge. The challenge stays open.
	ErrInvalidCode = otp.ErrInvalidCode
	// ErrNoChallenge is returned when no challenge of the expected purpose is
	// outstanding.
	ErrNoChallenge = otp.ErrNoChallenge
	// ErrCodeExpired is returned when the challenge outlived OTP.TTL.
	ErrCodeExpired = otp.ErrExpired
	// ErrCodeAttemptsExceeded is returned when OTP.MaxAttempts wrong codes
	// closed the challenge.
	ErrCodeAttemptsExceeded = otp.ErrAttemptsExceeded
	// ErrChallengeSuperseded is returned when the modal closed or a newer
	// challenge replaced this one while its code was being sent.
	ErrChallengeSuperseded = otp.ErrSuperseded
	// ErrDispatch is returned when the mail dispatcher rejected the code.
	ErrDispatch = errors.New("code dispatch failed")
	// ErrDispatchRateLimited is returned when the target received too many
	// codes within the dispatch window.
	ErrDispatchRateLimited = errors.New("code dispatch rate limited")

	// ErrInvalidCredentials is returned where no email verification fallback
	// applies, as in AdminSignIn.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the email exhausted its failed
	// login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrAccountExists is returned by registration for an email already in use.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when a verified email has no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotAdmin is returned by AdminSignIn for accounts without the admin role.
	ErrNotAdmin = errors.New("account is not an administrator")
	// ErrInvalidIDToken is returned by VerifyIDToken for tokens that fail
	// signature, expiry or kind checks.
	ErrInvalidIDToken = errors.New("invalid id token")
	// ErrNetwork wraps provider and store failures not classified otherwise.
	ErrNetwork = errors.New("network request failed")
)

// mapResolveError translates identifier resolution failures.
func mapResolveError(err error) error {
	if err == nil {
		return nil
	}
	var lookup *identifier.LookupError
	switch {
	case errors.Is(err, identifier.ErrEmpty):
		return fmt.Errorf("%w: identifier", ErrMissingField)
	case errors.Is(err, identifier.ErrNotFound):
		return err
	case errors.As(err, &lookup):
		return fmt.Errorf("%w: %w", ErrLookup, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

// mapProviderError translates identity provider failures. The original error
// stays in the chain so idp.CodeOf still works on the result.
func mapProviderError(err error) error {
	if err == nil {
		return nil
	}
	switch idp.CodeOf(err) {
	case idp.CodeInvalidCredential, idp.CodeInvalidCustomToken:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	case idp.CodeEmailAlreadyInUse:
		return fmt.Errorf("%w: %w", ErrAccountExists, err)
	case idp.CodeWeakPassword:
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	case idp.CodeInvalidEmail:
		return fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	case idp.CodeUserNotFound:
		return fmt.Errorf("%w: %w", ErrAccountNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

// mapOTPError translates challenge engine failures. Sentinels shared with
// the otp package pass through unchanged.
func mapOTPError(err error) error {
	if err == nil {
		return nil
	}
	var dispatch *otp.DispatchError
	switch {
	case errors.As(err, &dispatch):
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	case errors.Is(err, otp.ErrThrottled):
		if errors.Is(err, rate.ErrRedisUnavailable) {
			return fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return fmt.Errorf("%w: %w", ErrDispatchRateLimited, err)
	case errors.Is(err, otp.ErrInvalidTarget):
		return fmt.Errorf("%w: %w", ErrMissingField, err)
	default:
		return err
	}
}

// mapStoreError translates document store failures.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return err
}

// mapLimiterError translates login limiter failures.
func mapLimiterError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrLoginRateLimited
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
