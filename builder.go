package wanderauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/MrEthical07/wanderauth/bootstrap"
	"github.com/MrEthical07/wanderauth/docstore"
	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/internal/audit"
	"github.com/MrEthical07/wanderauth/internal/logging"
	"github.com/MrEthical07/wanderauth/internal/rate"
	"github.com/MrEthical07/wanderauth/jwt"
	"github.com/MrEthical07/wanderauth/localstate"
	"github.com/MrEthical07/wanderauth/mail"
	"github.com/MrEthical07/wanderauth/otp"
	"github.com/MrEthical07/wanderauth/password"
	"github.com/MrEthical07/wanderauth/profile"
	"github.com/MrEthical07/wanderauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use: Build fails on the
// second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	provider   idp.Provider
	admin      idp.Admin
	dispatcher mail.Dispatcher
	preloader  bootstrap.Preloader
	local      localstate.Store
	logger     Logger
	auditSink  AuditSink

	codeGenerator func() (string, error)
	clock         func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the document store, the rate limiter
// and the built-in identity provider. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider replaces the built-in Redis provider. admin mints the
// custom tokens that complete a legacy sign-in and must not be nil.
func (b *Builder) WithIdentityProvider(p idp.Provider, admin idp.Admin) *Builder {
	b.provider = p
	b.admin = admin
	return b
}

// WithMailDispatcher sets where verification codes are delivered. Without
// one, codes are written to the logger, and Build fails unless WithLogger
// was called.
func (b *Builder) WithMailDispatcher(d mail.Dispatcher) *Builder {
	b.dispatcher = d
	return b
}

// WithPreloader replaces the HTTP hero image preloader.
func (b *Builder) WithPreloader(p bootstrap.Preloader) *Builder {
	b.preloader = p
	return b
}

// WithLocalState sets the device-local store for the persisted admin
// session. The default keeps it in memory.
func (b *Builder) WithLocalState(s localstate.Store) *Builder {
	b.local = s
	return b
}

func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination. Events only flow when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithCodeGenerator overrides OTP code generation. gen must return six
// decimal digits.
func (b *Builder) WithCodeGenerator(gen func() (string, error)) *Builder {
	b.codeGenerator = gen
	return b
}

// WithClock overrides the time source used for challenge expiry, profile
// timestamps and bootstrap latency.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider != nil && b.admin == nil {
		return nil, errors.New("identity provider admin required")
	}
	if b.dispatcher == nil && b.logger == nil {
		// Codes would be written to the discard logger and reach no one.
		return nil, errors.New("mail dispatcher or logger required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = logging.Discard()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- DOCUMENT STORE --------
	docs := docstore.New(b.redis, docstore.Config{
		Prefix:  cfg.Store.RedisPrefix,
		Indexes: profile.Indexes(),
	})
	profiles := profile.NewStore(docs)

	// -------- RESOLVER + LIMITER --------
	resolver := identifier.NewResolver(profiles, identifier.Options{
		PlaceholderDomain: cfg.Identifier.PlaceholderDomain,
	})
	limiter := rate.New(b.redis, rate.Config{
		MaxDispatches:    cfg.OTP.MaxDispatches,
		DispatchWindow:   cfg.OTP.DispatchWindow,
		MaxLoginAttempts: cfg.Login.MaxAttempts,
		LoginWindow:      cfg.Login.Window,
	})

	// -------- OTP --------
	dispatcher := b.dispatcher
	if dispatcher == nil {
		dispatcher = mail.NewLogDispatcher(log)
	}
	challenges := otp.NewEngine(dispatcher, otp.Config{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Throttle:    limiter,
		Generator:   b.codeGenerator,
		Clock:       clock,
	})

	// -------- IDENTITY PROVIDER --------
	var (
		closers  []func()
		idTokens *jwt.Manager
	)
	provider, admin := b.provider, b.admin
	if provider == nil {
		hasher, err := password.NewHasher(cfg.Provider.Password)
		if err != nil {
			return nil, err
		}
		tokenCfg, err := withSigningKey(cfg.Provider.Tokens, log)
		if err != nil {
			return nil, err
		}
		tokens, err := jwt.NewManager(tokenCfg)
		if err != nil {
			return nil, err
		}
		redisCfg := idp.RedisConfig{
			Prefix:                cfg.Provider.RedisPrefix,
			RevealUnknownAccounts: cfg.Provider.RevealUnknownAccounts,
		}
		rp := idp.NewRedisProvider(b.redis, hasher, tokens, redisCfg)
		provider = rp
		admin = idp.NewRedisAdmin(b.redis, tokens, redisCfg)
		idTokens = tokens
		closers = append(closers, rp.Close)
	}

	// -------- SESSION + BOOTSTRAP --------
	local := b.local
	if local == nil {
		local = localstate.NewMemoryStore()
	}
	preloader := b.preloader
	if preloader == nil {
		preloader = bootstrap.NewHTTPPreloader(cfg.Bootstrap.PreloadTimeout)
	}
	binding := session.NewBinding(provider, profiles, session.Options{Logger: log})
	slides := bootstrap.NewDocSlides(docs)
	coordinator := bootstrap.NewCoordinator(binding, local, slides, preloader, bootstrap.Options{
		Logger:         log,
		PreloadTimeout: cfg.Bootstrap.PreloadTimeout,
		Clock:          clock,
	})

	engine := &Engine{
		config:    cloneConfig(cfg),
		log:       log.With("component", "engine"),
		clock:     clock,
		profiles:  profiles,
		slides:    slides,
		resolver:  resolver,
		limiter:   limiter,
		otp:       challenges,
		provider:  provider,
		admin:     admin,
		tokens:    idTokens,
		binding:   binding,
		bootstrap: coordinator,
		local:     local,
		closers:   closers,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}
	engine.flowDeps = engine.buildFlowDeps()
	coordinator.OnReady(engine.onBootstrapReady)

	b.built = true

	return engine, nil
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

// withSigningKey fills in an ephemeral Ed25519 key pair when none is
// configured. Tokens signed with it do not survive a restart.
func withSigningKey(cfg jwt.Config, log Logger) (jwt.Config, error) {
	if cfg.SigningMethod != jwt.MethodEd25519 ||
		len(cfg.PrivateKey) > 0 || len(cfg.PublicKey) > 0 || len(cfg.VerifyKeys) > 0 {
		return cfg, nil
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return cfg, err
	}
	log.Warn(context.Background(), "no token signing key configured, using an ephemeral key")
	cfg.PrivateKey = priv
	cfg.PublicKey = pub
	return cfg, nil
}
