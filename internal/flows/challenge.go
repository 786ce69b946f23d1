package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/wanderauth/otp"
)

// ChallengeMetrics carries metric IDs for code issue and verification.
type ChallengeMetrics struct {
	OTPIssued          int
	OTPDispatchFailure int
	OTPThrottled       int
	OTPVerified        int
	OTPInvalid         int
}

// ChallengeEvents carries audit event names for code issue and verification.
type ChallengeEvents struct {
	OTPIssued          string
	OTPDispatchFailure string
	OTPVerified        string
	OTPInvalid         string
}

// ChallengeOps is the part of the OTP engine the flows drive.
type ChallengeOps struct {
	Request func(ctx context.Context, target string, purpose otp.Purpose) (otp.Challenge, error)
	Current func() (otp.Challenge, bool)
	Verify  func(code string) (otp.Challenge, error)
}

func (c ChallengeOps) ready() bool {
	return c.Request != nil && c.Current != nil && c.Verify != nil
}

// issueChallenge requests a code for target. issued reports whether the
// challenge now occupies the slot, which is also the case when only the
// dispatch failed.
func issueChallenge(
	ctx context.Context,
	ops ChallengeOps,
	target string,
	purpose otp.Purpose,
	mapErr func(error) error,
	hooks Hooks,
	m ChallengeMetrics,
	ev ChallengeEvents,
) (ch otp.Challenge, issued bool, err error) {
	ch, err = ops.Request(ctx, target, purpose)
	if err == nil {
		hooks.MetricInc(m.OTPIssued)
		hooks.EmitAudit(ctx, ev.OTPIssued, true, "", target, nil, func() map[string]string {
			return map[string]string{"purpose": string(purpose)}
		})
		return ch, true, nil
	}

	mapped := mapErr(err)
	var dispatch *otp.DispatchError
	switch {
	case errors.Is(err, otp.ErrSuperseded):
		// Nobody is waiting for this challenge any more.
		return ch, false, mapped
	case errors.Is(err, otp.ErrThrottled):
		hooks.MetricInc(m.OTPThrottled)
	case errors.As(err, &dispatch):
		issued = true
		hooks.MetricInc(m.OTPDispatchFailure)
	default:
		hooks.MetricInc(m.OTPDispatchFailure)
	}
	hooks.EmitAudit(ctx, ev.OTPDispatchFailure, false, "", target, mapped, func() map[string]string {
		return map[string]string{"purpose": string(purpose)}
	})
	return ch, issued, mapped
}

// verifyChallenge checks code against the challenge issued for generation.
// A slot holding a different purpose or generation is reported as
// noChallenge without consuming it.
func verifyChallenge(
	ctx context.Context,
	ops ChallengeOps,
	code string,
	purpose otp.Purpose,
	generation uint64,
	noChallenge error,
	mapErr func(error) error,
	hooks Hooks,
	m ChallengeMetrics,
	ev ChallengeEvents,
) (otp.Challenge, error) {
	cur, ok := ops.Current()
	if !ok || cur.Purpose != purpose || cur.Generation != generation {
		hooks.MetricInc(m.OTPInvalid)
		hooks.EmitAudit(ctx, ev.OTPInvalid, false, "", "", noChallenge, func() map[string]string {
			return map[string]string{"purpose": string(purpose), "reason": "no_challenge"}
		})
		return otp.Challenge{}, noChallenge
	}

	ch, err := ops.Verify(code)
	if err == nil && ch.Generation != generation {
		err = noChallenge
	}
	if err != nil {
		mapped := mapErr(err)
		hooks.MetricInc(m.OTPInvalid)
		hooks.EmitAudit(ctx, ev.OTPInvalid, false, "", cur.Target, mapped, func() map[string]string {
			return map[string]string{"purpose": string(purpose)}
		})
		return ch, mapped
	}

	hooks.MetricInc(m.OTPVerified)
	hooks.EmitAudit(ctx, ev.OTPVerified, true, "", ch.Target, nil, func() map[string]string {
		return map[string]string{"purpose": string(purpose)}
	})
	return ch, nil
}

// ResendDeps captures code resend dependencies.
type ResendDeps struct {
	Challenge ChallengeOps
	Resend    func(context.Context) (otp.Challenge, error)

	MapOTPError func(error) error

	Hooks            Hooks
	Errors           LoginErrors
	ChallengeMetrics ChallengeMetrics
	ChallengeEvents  ChallengeEvents
}

// RunResend sends a fresh code for the outstanding challenge. The previous
// code stops verifying and the returned challenge carries the new
// generation.
func RunResend(ctx context.Context, deps ResendDeps) (otp.Challenge, error) {
	deps.Hooks = deps.Hooks.withDefaults()
	if !deps.Challenge.ready() || deps.Resend == nil || deps.MapOTPError == nil {
		return otp.Challenge{}, deps.Errors.EngineNotReady
	}

	cur, ok := deps.Challenge.Current()
	if !ok {
		return otp.Challenge{}, deps.Errors.NoChallenge
	}

	ops := deps.Challenge
	ops.Request = func(ctx context.Context, _ string, _ otp.Purpose) (otp.Challenge, error) {
		return deps.Resend(ctx)
	}
	ch, issued, err := issueChallenge(ctx, ops, cur.Target, cur.Purpose,
		deps.MapOTPError, deps.Hooks, deps.ChallengeMetrics, deps.ChallengeEvents)
	if !issued {
		return otp.Challenge{}, err
	}
	return ch, err
}
