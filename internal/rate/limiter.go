package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero maximum disables
// the corresponding limit.
type Config struct {
	MaxDispatches    int
	DispatchWindow   time.Duration
	MaxLoginAttempts int
	LoginWindow      time.Duration
}

// Limiter enforces per-target OTP dispatch limits and per-email login
// attempt limits using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowDispatch counts one code dispatch to target and reports
// ErrRateLimited once the window budget is spent.
func (l *Limiter) AllowDispatch(ctx context.Context, target string) error {
	if l.config.MaxDispatches <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, dispatchKey(target), l.config.DispatchWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxDispatches) {
		return ErrRateLimited
	}
	return nil
}

// CheckLogin reports ErrRateLimited when email has exceeded its failed
// login budget. It does not count an attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

// IncrementLogin records a failed login attempt for email.
func (l *Limiter) IncrementLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}

	_, err := l.incrementWithTTL(ctx, loginKey(email), l.config.LoginWindow)
	return err
}

// ResetLogin clears the failed-login counter for email. Called after a
// successful sign-in.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}

	if err := l.redis.Del(ctx, loginKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func dispatchKey(target string) string {
	return "wao:" + strings.ToLower(target)
}

func loginKey(email string) string {
	return "wal:" + strings.ToLower(email)
}
