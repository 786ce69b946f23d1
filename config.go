package wanderauth

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/jwt"
	"github.com/MrEthical07/wanderauth/password"
)

// Config holds every engine setting. Build it with DefaultConfig and adjust
// fields before handing it to Builder.WithConfig.
type Config struct {
	Identifier   IdentifierConfig   `yaml:"identifier" mapstructure:"identifier"`
	OTP          OTPConfig          `yaml:"otp" mapstructure:"otp"`
	Login        LoginConfig        `yaml:"login" mapstructure:"login"`
	Registration RegistrationConfig `yaml:"registration" mapstructure:"registration"`
	Provider     ProviderConfig     `yaml:"provider" mapstructure:"provider"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Bootstrap    BootstrapConfig    `yaml:"bootstrap" mapstructure:"bootstrap"`
	Admin        AdminConfig        `yaml:"admin" mapstructure:"admin"`
	Audit        AuditConfig        `yaml:"audit" mapstructure:"audit"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
}

/*
====================================
IDENTIFIER CONFIG
====================================
*/

// IdentifierConfig controls how login identifiers become auth emails.
type IdentifierConfig struct {
	// PlaceholderDomain is appended to phone digits to form an auth email.
	PlaceholderDomain string `yaml:"placeholder_domain" mapstructure:"placeholder_domain"`
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig tunes the verification challenge. Zero TTL and MaxAttempts keep
// a challenge valid until it is replaced or the modal closes.
type OTPConfig struct {
	TTL            time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxDispatches  int           `yaml:"max_dispatches" mapstructure:"max_dispatches"`
	DispatchWindow time.Duration `yaml:"dispatch_window" mapstructure:"dispatch_window"`
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig limits failed password attempts per auth email. Invalid
// credentials that fall back to email verification count as failures.
type LoginConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig controls registration form validation.
type RegistrationConfig struct {
	MinPasswordLength int  `yaml:"min_password_length" mapstructure:"min_password_length"`
	RequireUsername   bool `yaml:"require_username" mapstructure:"require_username"`
	// UsernamePattern must match the normalized username.
	UsernamePattern string `yaml:"username_pattern" mapstructure:"username_pattern"`
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig configures the built-in Redis identity provider. It is
// ignored when Builder.WithIdentityProvider supplies one.
type ProviderConfig struct {
	RedisPrefix           string          `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	RevealUnknownAccounts bool            `yaml:"reveal_unknown_accounts" mapstructure:"reveal_unknown_accounts"`
	Password              password.Config `yaml:"password" mapstructure:"password"`
	Tokens                jwt.Config      `yaml:"-" mapstructure:"-"`
}

// StoreConfig configures the document store holding profiles and slides.
type StoreConfig struct {
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// BootstrapConfig tunes the readiness gate.
type BootstrapConfig struct {
	PreloadTimeout time.Duration `yaml:"preload_timeout" mapstructure:"preload_timeout"`
}

// AdminConfig restricts AdminSignIn. When Emails is empty any account whose
// profile role is admin may sign in.
type AdminConfig struct {
	Emails []string `yaml:"emails" mapstructure:"emails"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	BufferSize int  `yaml:"buffer_size" mapstructure:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full" mapstructure:"drop_if_full"`
}

// MetricsConfig controls counters and the bootstrap latency histogram.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" mapstructure:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" mapstructure:"enable_latency_histograms"`
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Identifier: IdentifierConfig{
			PlaceholderDomain: identifier.DefaultPlaceholderDomain,
		},
		OTP: OTPConfig{
			MaxDispatches:  5,
			DispatchWindow: 15 * time.Minute,
		},
		Login: LoginConfig{
			MaxAttempts: 10,
			Window:      15 * time.Minute,
		},
		Registration: RegistrationConfig{
			MinPasswordLength: 6,
			UsernamePattern:   `^[a-z0-9][a-z0-9._]{2,29}$`,
		},
		Provider: ProviderConfig{
			RedisPrefix: "idp",
			Password:    password.DefaultConfig(),
			Tokens: jwt.Config{
				IDTokenTTL:     time.Hour,
				CustomTokenTTL: time.Minute,
				SigningMethod:  jwt.MethodEd25519,
				Issuer:         "wanderauth",
			},
		},
		Store: StoreConfig{
			RedisPrefix: "ds",
		},
		Bootstrap: BootstrapConfig{
			PreloadTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Provider.Tokens.PrivateKey = cloneBytes(cfg.Provider.Tokens.PrivateKey)
	out.Provider.Tokens.PublicKey = cloneBytes(cfg.Provider.Tokens.PublicKey)
	if cfg.Provider.Tokens.VerifyKeys != nil {
		out.Provider.Tokens.VerifyKeys = make(map[string][]byte, len(cfg.Provider.Tokens.VerifyKeys))
		for kid, key := range cfg.Provider.Tokens.VerifyKeys {
			out.Provider.Tokens.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Admin.Emails = append([]string(nil), cfg.Admin.Emails...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the settings the engine depends on. Provider settings are
// checked by Build only when the built-in provider is used.
func (c *Config) Validate() error {
	// Identifier
	domain := strings.TrimSpace(c.Identifier.PlaceholderDomain)
	if domain == "" {
		return errors.New("Identifier PlaceholderDomain must be set")
	}
	if strings.ContainsAny(domain, "@ \t\r\n") || !strings.Contains(domain, ".") {
		return errors.New("Identifier PlaceholderDomain must be a bare domain")
	}

	// OTP
	if c.OTP.TTL < 0 {
		return errors.New("OTP TTL must be >= 0")
	}
	if c.OTP.MaxAttempts < 0 {
		return errors.New("OTP MaxAttempts must be >= 0")
	}
	if c.OTP.MaxDispatches < 0 {
		return errors.New("OTP MaxDispatches must be >= 0")
	}
	if c.OTP.MaxDispatches > 0 && c.OTP.DispatchWindow <= 0 {
		return errors.New("OTP DispatchWindow must be > 0 when MaxDispatches is set")
	}

	// Login
	if c.Login.MaxAttempts < 0 {
		return errors.New("Login MaxAttempts must be >= 0")
	}
	if c.Login.MaxAttempts > 0 && c.Login.Window <= 0 {
		return errors.New("Login Window must be > 0 when MaxAttempts is set")
	}

	// Registration
	if c.Registration.MinPasswordLength < 1 {
		return errors.New("Registration MinPasswordLength must be >= 1")
	}
	if c.Registration.UsernamePattern != "" {
		if _, err := regexp.Compile(c.Registration.UsernamePattern); err != nil {
			return errors.New("Registration UsernamePattern is not a valid regular expression")
		}
	}

	// Bootstrap
	if c.Bootstrap.PreloadTimeout <= 0 {
		return errors.New("Bootstrap PreloadTimeout must be > 0")
	}

	// Admin
	for _, email := range c.Admin.Emails {
		if !identifier.IsEmail(strings.TrimSpace(email)) {
			return errors.New("Admin Emails must contain only email addresses")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func (c *Config) usernamePattern() *regexp.Regexp {
	if c.Registration.UsernamePattern == "" {
		return nil
	}
	return regexp.MustCompile(c.Registration.UsernamePattern)
}

func (c *Config) isAdminEmail(email string) bool {
	if len(c.Admin.Emails) == 0 {
		return true
	}
	for _, allowed := range c.Admin.Emails {
		if strings.EqualFold(strings.TrimSpace(allowed), email) {
			return true
		}
	}
	return false
}
