package otp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCode is returned when a submitted code does not match the
	// current challenge. The challenge stays outstanding.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrNoChallenge is returned when no challenge is outstanding.
	ErrNoChallenge = errors.New("no outstanding challenge")
	// ErrExpired is returned when the challenge is older than Config.TTL.
	ErrExpired = errors.New("verification code expired")
	// ErrAttemptsExceeded is returned when Config.MaxAttempts mismatches
	// have been submitted. The challenge is discarded.
	ErrAttemptsExceeded = errors.New("too many verification attempts")
	// ErrSuperseded is returned by Request when the challenge was replaced or
	// abandoned while its dispatch was in flight.
	ErrSuperseded = errors.New("challenge superseded")
	// ErrThrottled is returned when the dispatch throttle refuses a send.
	ErrThrottled = errors.New("code dispatch throttled")

	ErrInvalidTarget  = errors.New("invalid challenge target")
	ErrInvalidPurpose = errors.New("invalid challenge purpose")
)

// DispatchError reports that the mail dispatcher rejected a send. The
// challenge it belongs to is still considered issued.
type DispatchError struct {
	Target  string
	Purpose Purpose
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s code to %s: %v", e.Purpose, e.Target, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
