package wanderauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventLoginOTPFallback     = "login_otp_fallback"
	auditEventOTPIssued            = "otp_issued"
	auditEventOTPDispatchFailure   = "otp_dispatch_failure"
	auditEventOTPVerified          = "otp_verified"
	auditEventOTPInvalid           = "otp_invalid"
	auditEventOTPAbandoned         = "otp_abandoned"
	auditEventRegistrationStarted  = "registration_started"
	auditEventRegistrationSuccess  = "registration_success"
	auditEventRegistrationFailure  = "registration_failure"
	auditEventAdminSignIn          = "admin_sign_in"
	auditEventSignOut              = "sign_out"
	auditEventBootstrapReady       = "bootstrap_ready"
	auditEventBootstrapImageFailed = "bootstrap_image_failed"
)

// AuditErrorCode is the stable error classification written to
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrUsernameNotFound   AuditErrorCode = "username_not_found"
	auditErrLookup             AuditErrorCode = "lookup_failed"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrNoChallenge        AuditErrorCode = "no_challenge"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrDispatch           AuditErrorCode = "dispatch_failed"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountExists      AuditErrorCode = "account_exists"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrNotAdmin           AuditErrorCode = "not_admin"
	auditErrNetwork            AuditErrorCode = "network"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrUsernameNotFound):
		return auditErrUsernameNotFound
	case errors.Is(err, ErrLookup):
		return auditErrLookup
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrNoChallenge),
		errors.Is(err, ErrChallengeSuperseded):
		return auditErrNoChallenge
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrCodeAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrDispatch):
		return auditErrDispatch
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrDispatchRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrNotAdmin):
		return auditErrNotAdmin
	case errors.Is(err, ErrNetwork):
		return auditErrNetwork
	default:
		return auditErrInternal
	}
}
