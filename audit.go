package wanderauth

import (
	"io"

	"github.com/MrEthical07/wanderauth/internal/audit"
)

// AuditEvent is one auth-flow audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LogSink        = audit.LogSink
)

// NewChannelSink buffers up to buffer events for a reader of Events().
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink writes events through log.
func NewLogSink(log Logger) *LogSink {
	return audit.NewLogSink(log)
}

// AuditFamilies lists the event families dropped audit events are counted
// under, in export order. Event types are grouped by prefix: login_, otp_,
// registration_, admin_, sign_ (session) and bootstrap_; anything else is
// "other".
func AuditFamilies() []string {
	out := make([]string, len(audit.Families))
	for i, f := range audit.Families {
		out[i] = string(f)
	}
	return out
}
