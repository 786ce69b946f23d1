// Package internal contains helpers that are private to wanderauth, chiefly
// OTP code generation and comparison.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for login and registration
//   - logging: context-aware Logger over log/slog
//   - rate: Redis-backed fixed-window limits for OTP dispatch and login attempts
//
// # What this package must NOT do
//
//   - Export types that appear in the public wanderauth API.
//   - Be imported by any package outside the wanderauth module.
package internal
