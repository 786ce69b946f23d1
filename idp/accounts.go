package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type storedAccount struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Credential  string    `json:"credential"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s storedAccount) account() Account {
	return Account{ID: s.ID, Email: s.Email, DisplayName: s.DisplayName}
}

// accounts is the Redis layout shared by RedisProvider and RedisAdmin.
type accounts struct {
	redis  redis.UniversalClient
	prefix string
}

func (a accounts) key(email string) string {
	return a.prefix + ":acct:" + strings.ToLower(strings.TrimSpace(email))
}

func (a accounts) tokenKey(jti string) string {
	return a.prefix + ":ctk:" + jti
}

func (a accounts) load(ctx context.Context, email string) (storedAccount, bool, error) {
	raw, err := a.redis.Get(ctx, a.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storedAccount{}, false, nil
		}
		return storedAccount{}, false, newError(CodeNetworkRequestFailed, err)
	}

	var acct storedAccount
	if err := json.Unmarshal(raw, &acct); err != nil {
		return storedAccount{}, false, fmt.Errorf("decode account %s: %w", email, err)
	}
	return acct, true, nil
}

// create writes acct only if no account exists for its email.
func (a accounts) create(ctx context.Context, acct storedAccount) error {
	raw, err := json.Marshal(acct)
	if err != nil {
		return err
	}

	ok, err := a.redis.SetNX(ctx, a.key(acct.Email), raw, 0).Result()
	if err != nil {
		return newError(CodeNetworkRequestFailed, err)
	}
	if !ok {
		return newError(CodeEmailAlreadyInUse, nil)
	}
	return nil
}

// consumeToken marks jti as used until expires. It reports false when the
// token was already consumed.
func (a accounts) consumeToken(ctx context.Context, jti string, expires time.Time) (bool, error) {
	ttl := time.Until(expires)
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := a.redis.SetNX(ctx, a.tokenKey(jti), 1, ttl).Result()
	if err != nil {
		return false, newError(CodeNetworkRequestFailed, err)
	}
	return ok, nil
}
