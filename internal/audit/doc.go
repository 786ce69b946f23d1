// Package audit delivers auth-flow audit events to a sink off the caller's
// goroutine.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, structured log, no-op).
//   - [Dispatcher]: buffered relay that either drops or blocks when full.
//   - [Event]: one record with account, email, outcome and metadata.
//
// The package only buffers and delivers. Which events exist and when they
// fire is decided by the engine.
package audit
