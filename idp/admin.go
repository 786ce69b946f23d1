package idp

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/wanderauth/jwt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAdmin is the privileged counterpart of RedisProvider over the same
// Redis keys.
type RedisAdmin struct {
	accounts accounts
	tokens   *jwt.Manager
}

func NewRedisAdmin(client redis.UniversalClient, tokens *jwt.Manager, cfg RedisConfig) *RedisAdmin {
	return &RedisAdmin{
		accounts: accounts{redis: client, prefix: cfg.prefix()},
		tokens:   tokens,
	}
}

// MintCustomToken returns a short-lived token for the account registered
// under email.
func (a *RedisAdmin) MintCustomToken(ctx context.Context, email string) (string, error) {
	acct, ok, err := a.accounts.load(ctx, email)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newError(CodeUserNotFound, nil)
	}

	tok, _, err := a.tokens.CreateCustomToken(acct.ID, acct.Email)
	if err != nil {
		return "", err
	}
	return tok, nil
}

// ImportAccount stores an account with a pre-encoded credential, as when
// migrating users from the previous site. Credentials in retired schemes
// make SignIn report CodeInvalidCredential.
func (a *RedisAdmin) ImportAccount(ctx context.Context, email, displayName, credential string) (Account, error) {
	acct := storedAccount{
		ID:          uuid.NewString(),
		Email:       strings.TrimSpace(email),
		DisplayName: displayName,
		Credential:  credential,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.accounts.create(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct.account(), nil
}

// LookupAccount returns the account registered under email.
func (a *RedisAdmin) LookupAccount(ctx context.Context, email string) (Account, error) {
	acct, ok, err := a.accounts.load(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, newError(CodeUserNotFound, nil)
	}
	return acct.account(), nil
}
