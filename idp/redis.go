package idp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/wanderauth/jwt"
	"github.com/MrEthical07/wanderauth/password"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig tunes RedisProvider and RedisAdmin.
type RedisConfig struct {
	// Prefix namespaces every key. Defaults to "idp".
	Prefix string
	// RevealUnknownAccounts makes SignIn report CodeUserNotFound for unknown
	// emails. By default unknown emails and wrong passwords both report
	// CodeInvalidCredential.
	RevealUnknownAccounts bool
}

func (c RedisConfig) prefix() string {
	if c.Prefix == "" {
		return "idp"
	}
	return c.Prefix
}

// RedisProvider is a Provider backed by Redis. It models one client: the
// current session is process-local.
type RedisProvider struct {
	accounts accounts
	hasher   *password.Hasher
	tokens   *jwt.Manager
	config   RedisConfig
	now      func() time.Time
	state    authState
}

func NewRedisProvider(client redis.UniversalClient, hasher *password.Hasher, tokens *jwt.Manager, cfg RedisConfig) *RedisProvider {
	return &RedisProvider{
		accounts: accounts{redis: client, prefix: cfg.prefix()},
		hasher:   hasher,
		tokens:   tokens,
		config:   cfg,
		now:      time.Now,
	}
}

func (p *RedisProvider) SignIn(ctx context.Context, email, pw string) (Session, error) {
	acct, ok, err := p.accounts.load(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		if p.config.RevealUnknownAccounts {
			return Session{}, newError(CodeUserNotFound, nil)
		}
		return Session{}, newError(CodeInvalidCredential, nil)
	}

	// Retired and malformed credentials cannot be checked here; both read
	// as an invalid credential so the caller can re-verify by email.
	match, err := p.hasher.Verify(pw, acct.Credential)
	if err != nil {
		return Session{}, newError(CodeInvalidCredential, err)
	}
	if !match {
		return Session{}, newError(CodeInvalidCredential, nil)
	}

	return p.establish(acct.account())
}

func (p *RedisProvider) SignUp(ctx context.Context, email, pw, displayName string) (Session, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t\r\n") {
		return Session{}, newError(CodeInvalidEmail, nil)
	}

	credential, err := p.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return Session{}, newError(CodeWeakPassword, err)
		}
		return Session{}, err
	}

	acct := storedAccount{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		Credential:  credential,
		CreatedAt:   p.now().UTC(),
	}
	if err := p.accounts.create(ctx, acct); err != nil {
		return Session{}, err
	}

	return p.establish(acct.account())
}

// SignInWithCustomToken exchanges a token from RedisAdmin.MintCustomToken
// for a session. Each token is accepted once.
func (p *RedisProvider) SignInWithCustomToken(ctx context.Context, token string) (Session, error) {
	claims, err := p.tokens.ParseCustomToken(token)
	if err != nil {
		return Session{}, newError(CodeInvalidCustomToken, err)
	}

	fresh, err := p.accounts.consumeToken(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return Session{}, err
	}
	if !fresh {
		return Session{}, newError(CodeInvalidCustomToken, errors.New("token already used"))
	}

	acct, ok, err := p.accounts.load(ctx, claims.Email)
	if err != nil {
		return Session{}, err
	}
	if !ok || acct.ID != claims.Subject {
		return Session{}, newError(CodeUserNotFound, nil)
	}

	return p.establish(acct.account())
}

func (p *RedisProvider) SignOut(context.Context) error {
	p.state.set(nil)
	return nil
}

func (p *RedisProvider) SubscribeAuthState(fn AuthStateFunc) func() {
	return p.state.subscribe(fn)
}

func (p *RedisProvider) CurrentSession() (Session, bool) {
	return p.state.get()
}

// Close stops every auth-state subscription.
func (p *RedisProvider) Close() {
	p.state.close()
}

func (p *RedisProvider) establish(acct Account) (Session, error) {
	tok, expires, err := p.tokens.CreateIDToken(acct.ID, acct.Email, acct.DisplayName)
	if err != nil {
		return Session{}, err
	}

	s := Session{Account: acct, IDToken: tok, ExpiresAt: expires}
	p.state.set(&s)
	return s, nil
}
