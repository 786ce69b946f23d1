package wanderauth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/wanderauth/bootstrap"
	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/audit"
	"github.com/MrEthical07/wanderauth/internal/flows"
	"github.com/MrEthical07/wanderauth/internal/rate"
	"github.com/MrEthical07/wanderauth/jwt"
	"github.com/MrEthical07/wanderauth/localstate"
	"github.com/MrEthical07/wanderauth/otp"
	"github.com/MrEthical07/wanderauth/profile"
	"github.com/MrEthical07/wanderauth/session"
)

// Engine runs the sign-in, registration and bootstrap flows of one client.
// It holds a single verification challenge at a time, the way the auth modal
// does. All methods are safe for concurrent use.
type Engine struct {
	config Config
	log    Logger
	clock  func() time.Time

	profiles  *profile.Store
	slides    *bootstrap.DocSlides
	resolver  *identifier.Resolver
	limiter   *rate.Limiter
	otp       *otp.Engine
	provider  idp.Provider
	admin     idp.Admin
	tokens    *jwt.Manager
	binding   *session.Binding
	bootstrap *bootstrap.Coordinator
	local     localstate.Store
	closers   []func()
	audit     *audit.Dispatcher
	metrics   *Metrics
	flowDeps  flows.Deps

	mu                  sync.Mutex
	pendingLogin        flows.PendingLogin
	pendingRegistration *flows.PendingRegistration

	closeOnce sync.Once
}

// Bootstrap starts a readiness pass: the persisted admin check, the session
// binding and the hero image preload. It returns immediately; wait on Done
// or register OnReady.
func (e *Engine) Bootstrap(ctx context.Context) {
	if e == nil || e.bootstrap == nil {
		return
	}
	e.bootstrap.Start(ctx)
}

// Restart abandons the running pass, drops the signed-in state and starts
// a new pass.
func (e *Engine) Restart(ctx context.Context) {
	if e == nil || e.bootstrap == nil {
		return
	}
	e.resetPending()
	e.otp.Abandon()
	e.bootstrap.Restart(ctx)
}

// Ready reports whether the current pass has both auth and image signals.
func (e *Engine) Ready() bool {
	return e != nil && e.bootstrap != nil && e.bootstrap.Ready()
}

// Done is closed when the current pass becomes ready. A nil engine
// returns a channel that never closes.
func (e *Engine) Done() <-chan struct{} {
	if e == nil || e.bootstrap == nil {
		return make(chan struct{})
	}
	return e.bootstrap.Done()
}

func (e *Engine) Readiness() bootstrap.Readiness {
	if e == nil || e.bootstrap == nil {
		return bootstrap.Readiness{}
	}
	return e.bootstrap.State()
}

// OnReady registers fn to run once per pass when it becomes ready.
func (e *Engine) OnReady(fn func(bootstrap.Readiness)) {
	if e == nil || e.bootstrap == nil {
		return
	}
	e.bootstrap.OnReady(fn)
}

// PutHeroSlide stores a landing page slide. The slide with the lowest Order
// is preloaded during Bootstrap.
func (e *Engine) PutHeroSlide(ctx context.Context, key string, s bootstrap.Slide) error {
	if e == nil || e.slides == nil {
		return ErrEngineNotReady
	}
	return mapStoreError(e.slides.Put(ctx, key, s))
}

// Stop cancels the running pass and tears down the auth and profile
// subscriptions. Bootstrap may be called again afterwards.
func (e *Engine) Stop() {
	if e == nil || e.bootstrap == nil {
		return
	}
	e.bootstrap.Stop()
}

// Close stops the engine, flushes queued audit events and releases the
// built-in provider. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.Stop()
		if e.otp != nil {
			e.otp.Abandon()
		}
		if e.audit != nil {
			e.audit.Close()
		}
		for _, closeFn := range e.closers {
			closeFn()
		}
	})
}

// AuditDropped returns how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByFamily splits AuditDropped by event family (see
// AuditFamilies). It is nil when auditing is disabled.
func (e *Engine) AuditDroppedByFamily() map[string]uint64 {
	if e == nil || e.audit == nil {
		return nil
	}
	byFamily := e.audit.DroppedByFamily()
	out := make(map[string]uint64, len(byFamily))
	for f, n := range byFamily {
		out[string(f)] = n
	}
	return out
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) onBootstrapReady(r bootstrap.Readiness) {
	ctx := context.Background()
	e.metricInc(MetricBootstrapReady)
	e.metrics.Observe(MetricBootstrapLatency, r.Elapsed)

	if r.ImageErr != nil {
		e.metricInc(MetricBootstrapImageFailed)
		e.emitAudit(ctx, auditEventBootstrapImageFailed, false, "", "", r.ImageErr, func() map[string]string {
			return map[string]string{"pass": strconv.FormatUint(r.Pass, 10)}
		})
	}

	e.emitAudit(ctx, auditEventBootstrapReady, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"pass":       strconv.FormatUint(r.Pass, 10),
			"admin":      strconv.FormatBool(r.Admin),
			"elapsed_ms": strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		}
	})
}

func (e *Engine) resetPending() {
	e.mu.Lock()
	e.pendingLogin = flows.PendingLogin{}
	e.pendingRegistration = nil
	e.mu.Unlock()
}

func (e *Engine) hooks() flows.Hooks {
	return flows.Hooks{
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      e.log.Warn,
	}
}

func (e *Engine) challengeOps() flows.ChallengeOps {
	return flows.ChallengeOps{
		Request: e.otp.Request,
		Current: e.otp.Current,
		Verify:  e.otp.Verify,
	}
}

func (e *Engine) buildFlowDeps() flows.Deps {
	hooks := e.hooks()
	challenge := e.challengeOps()

	challengeMetrics := flows.ChallengeMetrics{
		OTPIssued:          int(MetricOTPIssued),
		OTPDispatchFailure: int(MetricOTPDispatchFailure),
		OTPThrottled:       int(MetricOTPThrottled),
		OTPVerified:        int(MetricOTPVerified),
		OTPInvalid:         int(MetricOTPInvalid),
	}
	challengeEvents := flows.ChallengeEvents{
		OTPIssued:          auditEventOTPIssued,
		OTPDispatchFailure: auditEventOTPDispatchFailure,
		OTPVerified:        auditEventOTPVerified,
		OTPInvalid:         auditEventOTPInvalid,
	}
	loginMetrics := flows.LoginMetrics{
		LoginSuccess:     int(MetricLoginSuccess),
		LoginFailure:     int(MetricLoginFailure),
		LoginRateLimited: int(MetricLoginRateLimited),
		LoginOTPFallback: int(MetricLoginOTPFallback),
		ResolveNotFound:  int(MetricResolveNotFound),
	}
	loginEvents := flows.LoginEvents{
		LoginSuccess:     auditEventLoginSuccess,
		LoginFailure:     auditEventLoginFailure,
		LoginRateLimited: auditEventLoginRateLimited,
		LoginOTPFallback: auditEventLoginOTPFallback,
	}
	loginErrors := flows.LoginErrors{
		EngineNotReady:   ErrEngineNotReady,
		MissingField:     ErrMissingField,
		UsernameNotFound: ErrUsernameNotFound,
		NoChallenge:      ErrNoChallenge,
	}
	registrationMetrics := flows.RegistrationMetrics{
		RegistrationStarted: int(MetricRegistrationStarted),
		RegistrationSuccess: int(MetricRegistrationSuccess),
		RegistrationFailure: int(MetricRegistrationFailure),
	}
	registrationEvents := flows.RegistrationEvents{
		RegistrationStarted: auditEventRegistrationStarted,
		RegistrationSuccess: auditEventRegistrationSuccess,
		RegistrationFailure: auditEventRegistrationFailure,
	}
	registrationErrors := flows.RegistrationErrors{
		EngineNotReady:    ErrEngineNotReady,
		MissingField:      ErrMissingField,
		InvalidIdentifier: ErrInvalidIdentifier,
		InvalidUsername:   ErrInvalidUsername,
		UsernameTaken:     ErrUsernameTaken,
		WeakPassword:      ErrWeakPassword,
		NoChallenge:       ErrNoChallenge,
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			Resolve:            e.resolver.Resolve,
			CheckLoginRate:     e.limiter.CheckLogin,
			IncrementLoginRate: e.limiter.IncrementLogin,
			ResetLoginRate:     e.limiter.ResetLogin,
			SignIn:             e.provider.SignIn,
			ContactEmail:       e.contactEmail,
			Challenge:          challenge,
			MapResolveError:    mapResolveError,
			MapLimiterError:    mapLimiterError,
			MapProviderError:   mapProviderError,
			MapOTPError:        mapOTPError,
			Hooks:              hooks,
			Metrics:            loginMetrics,
			Events:             loginEvents,
			Errors:             loginErrors,
			ChallengeMetrics:   challengeMetrics,
			ChallengeEvents:    challengeEvents,
		},
		ConfirmLogin: flows.ConfirmLoginDeps{
			Challenge:             challenge,
			MintCustomToken:       e.admin.MintCustomToken,
			SignInWithCustomToken: e.provider.SignInWithCustomToken,
			ResetLoginRate:        e.limiter.ResetLogin,
			MapOTPError:           mapOTPError,
			MapProviderError:      mapProviderError,
			Hooks:                 hooks,
			Metrics:               loginMetrics,
			Events:                loginEvents,
			Errors:                loginErrors,
			ChallengeMetrics:      challengeMetrics,
			ChallengeEvents:       challengeEvents,
		},
		StartRegistration: flows.StartRegistrationDeps{
			PlaceholderDomain: e.config.Identifier.PlaceholderDomain,
			MinPasswordLength: e.config.Registration.MinPasswordLength,
			RequireUsername:   e.config.Registration.RequireUsername,
			UsernamePattern:   e.config.usernamePattern(),
			UsernameTaken:     e.usernameTaken,
			Challenge:         challenge,
			MapStoreError:     mapStoreError,
			MapOTPError:       mapOTPError,
			Hooks:             hooks,
			Metrics:           registrationMetrics,
			Events:            registrationEvents,
			Errors:            registrationErrors,
			ChallengeMetrics:  challengeMetrics,
			ChallengeEvents:   challengeEvents,
		},
		ConfirmRegistration: flows.ConfirmRegistrationDeps{
			Challenge:        challenge,
			SignUp:           e.provider.SignUp,
			WriteProfile:     e.profiles.Put,
			Now:              e.clock,
			MapOTPError:      mapOTPError,
			MapProviderError: mapProviderError,
			MapStoreError:    mapStoreError,
			Hooks:            hooks,
			Metrics:          registrationMetrics,
			Events:           registrationEvents,
			Errors:           registrationErrors,
			ChallengeMetrics: challengeMetrics,
			ChallengeEvents:  challengeEvents,
		},
		Resend: flows.ResendDeps{
			Challenge:        challenge,
			Resend:           e.otp.Resend,
			MapOTPError:      mapOTPError,
			Hooks:            hooks,
			Errors:           loginErrors,
			ChallengeMetrics: challengeMetrics,
			ChallengeEvents:  challengeEvents,
		},
	}
}

// contactEmail returns where a code for authEmail should go: the profile's
// real email for synthesized phone accounts, otherwise authEmail itself.
func (e *Engine) contactEmail(ctx context.Context, authEmail string) (string, error) {
	rec, found, err := e.profiles.FindByEmail(ctx, authEmail)
	if err != nil || !found {
		return authEmail, err
	}
	if c := rec.ContactEmail(); c != "" {
		return c, nil
	}
	return authEmail, nil
}

func (e *Engine) usernameTaken(ctx context.Context, username string) (bool, error) {
	_, found, err := e.profiles.LookupUsername(ctx, username)
	return found, err
}
