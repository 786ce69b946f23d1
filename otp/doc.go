// Package otp implements the single-slot one-time-code challenge used for
// legacy-account re-verification and for registration email confirmation.
//
// # State machine
//
//	Idle → AwaitingSubmit → Sent → Verified
//	                          ↘ Abandoned
//
// At most one challenge is outstanding per Engine. Requesting a new one
// replaces the previous code, so only the most recently issued code can
// verify. Mismatches leave the challenge in place and may be retried.
//
// Expiry and attempt limits are off by default and enabled through
// [Config.TTL] and [Config.MaxAttempts].
package otp
