package idp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/wanderauth/jwt"
	"github.com/MrEthical07/wanderauth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fixture struct {
	mr       *miniredis.Miniredis
	provider *RedisProvider
	admin    *RedisAdmin
}

func newFixture(t *testing.T, cfg RedisConfig) fixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tokens, err := jwt.NewManager(jwt.Config{
		IDTokenTTL:    time.Hour,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "wanderauth-test",
	})
	if err != nil {
		t.Fatalf("jwt.NewManager failed: %v", err)
	}

	hcfg := password.DefaultConfig()
	hcfg.Memory = 8 * 1024
	hasher, err := password.NewHasher(hcfg)
	if err != nil {
		t.Fatalf("password.NewHasher failed: %v", err)
	}

	p := NewRedisProvider(client, hasher, tokens, cfg)
	t.Cleanup(p.Close)
	return fixture{mr: mr, provider: p, admin: NewRedisAdmin(client, tokens, cfg)}
}

func TestSignUpThenSignIn(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	ctx := context.Background()

	created, err := f.provider.SignUp(ctx, "alice@mail.com", "sunset-beach", "Alice")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if created.Account.ID == "" || created.IDToken == "" {
		t.Fatalf("incomplete session: %+v", created)
	}

	if _, err := f.provider.SignUp(ctx, "ALICE@mail.com", "sunset-beach", "Alice"); !IsCode(err, CodeEmailAlreadyInUse) {
		t.Fatalf("expected email-already-in-use, got %v", err)
	}

	s, err := f.provider.SignIn(ctx, "alice@mail.com", "sunset-beach")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if s.Account.ID != created.Account.ID {
		t.Fatalf("expected stable account id, got %s vs %s", s.Account.ID, created.Account.ID)
	}

	cur, ok := f.provider.CurrentSession()
	if !ok || cur.Account.Email != "alice@mail.com" {
		t.Fatalf("unexpected current session %+v %v", cur, ok)
	}
}

func TestSignInFailuresAreInvalidCredential(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	ctx := context.Background()

	if _, err := f.provider.SignUp(ctx, "alice@mail.com", "sunset-beach", ""); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := f.provider.SignIn(ctx, "alice@mail.com", "wrong-pass"); !IsCode(err, CodeInvalidCredential) {
		t.Fatalf("expected invalid-credential for wrong password, got %v", err)
	}
	if _, err := f.provider.SignIn(ctx, "ghost@mail.com", "whatever"); !IsCode(err, CodeInvalidCredential) {
		t.Fatalf("expected invalid-credential for unknown email, got %v", err)
	}

	if _, err := f.admin.ImportAccount(ctx, "legacy@mail.com", "Legacy", "md5$5d41402abc4b2a76b9719d911017c592"); err != nil {
		t.Fatalf("ImportAccount failed: %v", err)
	}
	_, err := f.provider.SignIn(ctx, "legacy@mail.com", "hello")
	if !IsCode(err, CodeInvalidCredential) || !errors.Is(err, password.ErrRetiredScheme) {
		t.Fatalf("expected invalid-credential wrapping retired scheme, got %v", err)
	}
}

func TestRevealUnknownAccounts(t *testing.T) {
	f := newFixture(t, RedisConfig{RevealUnknownAccounts: true})
	if _, err := f.provider.SignIn(context.Background(), "ghost@mail.com", "whatever"); !IsCode(err, CodeUserNotFound) {
		t.Fatalf("expected user-not-found, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	ctx := context.Background()

	if _, err := f.provider.SignUp(ctx, "not-an-email", "sunset-beach", ""); !IsCode(err, CodeInvalidEmail) {
		t.Fatalf("expected invalid-email, got %v", err)
	}
	if _, err := f.provider.SignUp(ctx, "a@mail.com", "123", ""); !IsCode(err, CodeWeakPassword) {
		t.Fatalf("expected weak-password, got %v", err)
	}
}

func TestCustomTokenIsSingleUse(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	ctx := context.Background()

	acct, err := f.admin.ImportAccount(ctx, "legacy@mail.com", "Legacy", "sha1$x$y")
	if err != nil {
		t.Fatalf("ImportAccount failed: %v", err)
	}

	tok, err := f.admin.MintCustomToken(ctx, "legacy@mail.com")
	if err != nil {
		t.Fatalf("MintCustomToken failed: %v", err)
	}

	s, err := f.provider.SignInWithCustomToken(ctx, tok)
	if err != nil {
		t.Fatalf("SignInWithCustomToken failed: %v", err)
	}
	if s.Account.ID != acct.ID {
		t.Fatalf("expected account %s, got %s", acct.ID, s.Account.ID)
	}

	if _, err := f.provider.SignInWithCustomToken(ctx, tok); !IsCode(err, CodeInvalidCustomToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	if _, err := f.provider.SignInWithCustomToken(ctx, "garbage"); !IsCode(err, CodeInvalidCustomToken) {
		t.Fatalf("expected invalid-custom-token, got %v", err)
	}
	if _, err := f.admin.MintCustomToken(ctx, "ghost@mail.com"); !IsCode(err, CodeUserNotFound) {
		t.Fatalf("expected user-not-found, got %v", err)
	}
}

func TestRedisFailureIsNetworkError(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	f.mr.SetError("ERR induced failure")

	_, err := f.provider.SignIn(context.Background(), "alice@mail.com", "sunset-beach")
	if !IsCode(err, CodeNetworkRequestFailed) {
		t.Fatalf("expected network-request-failed, got %v", err)
	}
	if !errors.Is(err, &Error{Code: CodeNetworkRequestFailed}) {
		t.Fatal("expected errors.Is to match on code")
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []*Session
	signal chan struct{}
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{signal: make(chan struct{}, 64)}
}

func (r *stateRecorder) fn(s *Session) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *stateRecorder) wait(t *testing.T, n int) []*Session {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.states) >= n {
			out := append([]*Session(nil), r.states...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d auth states", n)
		}
	}
}

func TestSubscribeAuthStateDeliversCurrentThenChanges(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	ctx := context.Background()
	rec := newStateRecorder()

	unsubscribe := f.provider.SubscribeAuthState(rec.fn)
	defer unsubscribe()

	if _, err := f.provider.SignUp(ctx, "alice@mail.com", "sunset-beach", "Alice"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := f.provider.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	states := rec.wait(t, 3)
	if states[0] != nil {
		t.Fatalf("expected initial signed-out state, got %+v", states[0])
	}
	if states[1] == nil || states[1].Account.Email != "alice@mail.com" {
		t.Fatalf("expected signed-in state, got %+v", states[1])
	}
	if states[2] != nil {
		t.Fatalf("expected signed-out state, got %+v", states[2])
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := newFixture(t, RedisConfig{})
	rec := newStateRecorder()

	unsubscribe := f.provider.SubscribeAuthState(rec.fn)
	rec.wait(t, 1)
	unsubscribe()

	if _, err := f.provider.SignUp(context.Background(), "alice@mail.com", "sunset-beach", ""); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.states) != 1 {
		t.Fatalf("expected no delivery after unsubscribe, got %d states", len(rec.states))
	}
}
