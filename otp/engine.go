package otp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/wanderauth/internal"
	"github.com/MrEthical07/wanderauth/mail"
)

// Purpose is the reason a challenge was issued.
type Purpose = mail.Purpose

const (
	PurposeLoginLegacyVerify = mail.PurposeLoginLegacyVerify
	PurposeRegisterVerify    = mail.PurposeRegisterVerify
)

// State is the position of an Engine in its challenge lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingSubmit
	StateSent
	StateVerified
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSubmit:
		return "awaiting-identifier-submit"
	case StateSent:
		return "otp-sent"
	case StateVerified:
		return "verified"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Throttle gates code dispatch per target.
type Throttle interface {
	AllowDispatch(ctx context.Context, target string) error
}

// Config tunes an Engine. The zero value reproduces the unbounded
// behaviour: no expiry, no attempt limit, no throttle.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
	Throttle    Throttle
	// Generator overrides code generation. It must return six digits.
	Generator func() (string, error)
	Clock     func() time.Time
}

// Challenge describes an issued code without revealing it.
type Challenge struct {
	Target     string
	Purpose    Purpose
	IssuedAt   time.Time
	Generation uint64
}

type slot struct {
	challenge Challenge
	code      string
	attempts  int
}

// Engine holds the single challenge slot. It is safe for concurrent use.
type Engine struct {
	dispatcher mail.Dispatcher
	config     Config

	mu      sync.Mutex
	state   State
	current *slot
	gen     uint64
}

func NewEngine(dispatcher mail.Dispatcher, cfg Config) *Engine {
	if cfg.Generator == nil {
		cfg.Generator = internal.NewOTPCode
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		dispatcher: dispatcher,
		config:     cfg,
		state:      StateIdle,
	}
}

// Begin marks the start of a form session. Any outstanding challenge is
// discarded.
func (e *Engine) Begin() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.gen++
		e.current = nil
	}
	e.state = StateAwaitingSubmit
}

// Request issues a new challenge for target, replacing any previous one,
// and dispatches the code. A *DispatchError still leaves the challenge
// issued. If the challenge is replaced or abandoned before the dispatcher
// returns, the dispatch result is dropped and ErrSuperseded is returned.
func (e *Engine) Request(ctx context.Context, target string, purpose Purpose) (Challenge, error) {
	if target == "" {
		return Challenge{}, ErrInvalidTarget
	}
	if !purpose.Valid() {
		return Challenge{}, fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}
	if e.config.Throttle != nil {
		if err := e.config.Throttle.AllowDispatch(ctx, target); err != nil {
			return Challenge{}, fmt.Errorf("%w: %w", ErrThrottled, err)
		}
	}

	code, err := e.config.Generator()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate code: %w", err)
	}

	e.mu.Lock()
	e.gen++
	ch := Challenge{
		Target:     target,
		Purpose:    purpose,
		IssuedAt:   e.config.Clock(),
		Generation: e.gen,
	}
	e.current = &slot{challenge: ch, code: code}
	e.state = StateSent
	e.mu.Unlock()

	sendErr := e.dispatcher.SendCode(ctx, target, code, purpose)

	if !e.isCurrent(ch.Generation) {
		return ch, ErrSuperseded
	}
	if sendErr != nil {
		return ch, &DispatchError{Target: target, Purpose: purpose, Err: sendErr}
	}
	return ch, nil
}

// Resend issues a fresh code to the target and purpose of the outstanding
// challenge.
func (e *Engine) Resend(ctx context.Context) (Challenge, error) {
	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()

	if cur == nil {
		return Challenge{}, ErrNoChallenge
	}
	return e.Request(ctx, cur.challenge.Target, cur.challenge.Purpose)
}

// Verify compares code against the outstanding challenge. It succeeds only
// on an exact match with the most recently issued code.
func (e *Engine) Verify(code string) (Challenge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current
	if cur == nil {
		return Challenge{}, ErrNoChallenge
	}

	if e.config.TTL > 0 && e.config.Clock().Sub(cur.challenge.IssuedAt) > e.config.TTL {
		e.discardLocked()
		return cur.challenge, ErrExpired
	}

	if !internal.EqualCode(code, cur.code) {
		cur.attempts++
		if e.config.MaxAttempts > 0 && cur.attempts >= e.config.MaxAttempts {
			e.discardLocked()
			return cur.challenge, ErrAttemptsExceeded
		}
		return cur.challenge, ErrInvalidCode
	}

	e.current = nil
	e.state = StateVerified
	return cur.challenge, nil
}

// Abandon discards the outstanding challenge. It reports whether one was
// outstanding. In-flight dispatches for it are ignored when they complete.
func (e *Engine) Abandon() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	had := e.current != nil
	e.discardLocked()
	return had
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the outstanding challenge, if any.
func (e *Engine) Current() (Challenge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return Challenge{}, false
	}
	return e.current.challenge, true
}

func (e *Engine) isCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

func (e *Engine) discardLocked() {
	e.gen++
	e.current = nil
	e.state = StateAbandoned
}
