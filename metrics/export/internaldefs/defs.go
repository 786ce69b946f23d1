package internaldefs

import (
	"github.com/MrEthical07/wanderauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   wanderauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   wanderauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: wanderauth.MetricLoginSuccess, Name: "wanderauth_login_success_total", Help: "Completed sign-ins, by password or email code."},
	{ID: wanderauth.MetricLoginFailure, Name: "wanderauth_login_failure_total", Help: "Sign-ins that ended in an error."},
	{ID: wanderauth.MetricLoginRateLimited, Name: "wanderauth_login_rate_limited_total", Help: "Sign-ins refused by the attempt limiter."},
	{ID: wanderauth.MetricLoginOTPFallback, Name: "wanderauth_login_otp_fallback_total", Help: "Invalid credentials rerouted to email verification."},
	{ID: wanderauth.MetricResolveNotFound, Name: "wanderauth_resolve_not_found_total", Help: "Usernames with no matching profile."},
	{ID: wanderauth.MetricOTPIssued, Name: "wanderauth_otp_issued_total", Help: "Verification codes dispatched."},
	{ID: wanderauth.MetricOTPDispatchFailure, Name: "wanderauth_otp_dispatch_failure_total", Help: "Verification codes the dispatcher rejected."},
	{ID: wanderauth.MetricOTPThrottled, Name: "wanderauth_otp_throttled_total", Help: "Code requests refused by the dispatch limiter."},
	{ID: wanderauth.MetricOTPVerified, Name: "wanderauth_otp_verified_total", Help: "Accepted verification codes."},
	{ID: wanderauth.MetricOTPInvalid, Name: "wanderauth_otp_invalid_total", Help: "Rejected verification codes."},
	{ID: wanderauth.MetricOTPAbandoned, Name: "wanderauth_otp_abandoned_total", Help: "Challenges discarded by closing the modal."},
	{ID: wanderauth.MetricRegistrationStarted, Name: "wanderauth_registration_started_total", Help: "Registrations that reached the code step."},
	{ID: wanderauth.MetricRegistrationSuccess, Name: "wanderauth_registration_success_total", Help: "Accounts created."},
	{ID: wanderauth.MetricRegistrationFailure, Name: "wanderauth_registration_failure_total", Help: "Failed registrations."},
	{ID: wanderauth.MetricAdminSignIn, Name: "wanderauth_admin_sign_in_total", Help: "Persisted admin sessions."},
	{ID: wanderauth.MetricSignOut, Name: "wanderauth_sign_out_total", Help: "Sign-outs."},
	{ID: wanderauth.MetricBootstrapReady, Name: "wanderauth_bootstrap_ready_total", Help: "Bootstrap passes that reached ready."},
	{ID: wanderauth.MetricBootstrapImageFailed, Name: "wanderauth_bootstrap_image_failed_total", Help: "Hero image preloads that failed and were skipped."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: wanderauth.MetricBootstrapLatency, Name: "wanderauth_bootstrap_latency_seconds", Help: "Time from bootstrap start to ready."},
}

// HistogramBounds are the upper bucket bounds, in seconds, matching the
// engine's fixed buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside
// instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
