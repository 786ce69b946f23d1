package flows

import "context"

// Deps groups flow dependency sets. The Engine builds this once and
// delegates operations to the matching flow.
type Deps struct {
	Login               LoginDeps
	ConfirmLogin        ConfirmLoginDeps
	StartRegistration   StartRegistrationDeps
	ConfirmRegistration ConfirmRegistrationDeps
	Resend              ResendDeps
}

// AuditFunc records one audit event. metadata is only called when the event
// is kept.
type AuditFunc func(ctx context.Context, event string, success bool, accountID, email string, err error, metadata func() map[string]string)

// Hooks carries the observability callbacks every flow reports through.
type Hooks struct {
	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(ctx context.Context, msg string, args ...any)
}

func (h Hooks) withDefaults() Hooks {
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(context.Context, string, ...any) {}
	}
	return h
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
