// Package rate provides Redis-backed fixed-window limits for the OTP
// dispatch path and for repeated login attempts.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - "wao:" for OTP dispatch per target email
//   - "wal:" for login attempts per canonical email
//
// # What this package must NOT do
//
//   - Decide what a limited caller sees; the root package maps ErrRateLimited.
//   - Be imported outside the wanderauth module.
package rate
