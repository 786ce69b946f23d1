package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t testing.TB) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t testing.TB, mutate func(*Config)) *Manager {
	t.Helper()
	pub, priv := newEdKeys(t)
	cfg := Config{
		IDTokenTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "wanderauth",
		Audience:      "travel-web",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIDTokenRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)

	tok, expires, err := m.CreateIDToken("acct-1", "alice@mail.com", "Alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected expiry in the future, got %v", expires)
	}

	claims, err := m.ParseIDToken(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "acct-1" || claims.Email != "alice@mail.com" || claims.Name != "Alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestKindsDoNotCross(t *testing.T) {
	m := newTestManager(t, nil)

	custom, _, err := m.CreateCustomToken("acct-1", "alice@mail.com")
	if err != nil {
		t.Fatalf("create custom: %v", err)
	}
	if _, err := m.ParseIDToken(custom); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for custom token, got %v", err)
	}
	if _, err := m.ParseCustomToken(custom); err != nil {
		t.Fatalf("expected custom token to parse: %v", err)
	}

	id, _, err := m.CreateIDToken("acct-1", "alice@mail.com", "")
	if err != nil {
		t.Fatalf("create id: %v", err)
	}
	if _, err := m.ParseCustomToken(id); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for ID token, got %v", err)
	}
}

func TestCustomTokenExpires(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.CustomTokenTTL = time.Minute })
	start := time.Now()
	m.now = func() time.Time { return start }

	tok, _, err := m.CreateCustomToken("acct-1", "alice@mail.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := m.ParseCustomToken(tok); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithmIssuerAudience(t *testing.T) {
	_, priv := newEdKeys(t)
	m := newTestManager(t, func(c *Config) {
		c.PrivateKey = priv
		c.PublicKey = priv.Public().(ed25519.PublicKey)
	})

	base := func() Claims {
		now := time.Now()
		return Claims{Kind: KindID, Email: "a@b.co", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acct-1",
			Issuer:    "wanderauth",
			Audience:  gjwt.ClaimStrings{"travel-web"},
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		}}
	}

	hs, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, base()).SignedString([]byte("secret-secret-secret-secret-secret"))
	if _, err := m.ParseIDToken(hs); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}

	wrongIssuer := base()
	wrongIssuer.Issuer = "other"
	signed, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := m.ParseIDToken(signed); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := base()
	wrongAudience.Audience = gjwt.ClaimStrings{"other-app"}
	signed, _ = gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongAudience).SignedString(priv)
	if _, err := m.ParseIDToken(signed); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	noSubject := base()
	noSubject.Subject = ""
	signed, _ = gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, noSubject).SignedString(priv)
	if _, err := m.ParseIDToken(signed); err == nil {
		t.Fatal("expected missing subject to fail")
	}

	good, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, base()).SignedString(priv)
	if _, err := m.ParseIDToken(good); err != nil {
		t.Fatalf("expected hand-built token to parse: %v", err)
	}
}

func TestKeyRotationByKid(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)

	oldSigner := newTestManager(t, func(c *Config) {
		c.PrivateKey, c.PublicKey, c.KeyID = priv1, pub1, "k1"
	})
	tok, _, err := oldSigner.CreateIDToken("acct-1", "a@b.co", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rotated := newTestManager(t, func(c *Config) {
		c.PrivateKey, c.PublicKey, c.KeyID = priv2, pub2, "k2"
		c.VerifyKeys = map[string][]byte{"k1": pub1, "k2": pub2}
	})
	if _, err := rotated.ParseIDToken(tok); err != nil {
		t.Fatalf("expected k1 token to verify after rotation: %v", err)
	}

	dropped := newTestManager(t, func(c *Config) {
		c.PrivateKey, c.PublicKey, c.KeyID = priv2, pub2, "k2"
		c.VerifyKeys = map[string][]byte{"k2": pub2}
	})
	if _, err := dropped.ParseIDToken(tok); err == nil {
		t.Fatal("expected unknown kid failure")
	}
}

func TestHS256(t *testing.T) {
	m, err := NewManager(Config{
		IDTokenTTL:    time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, _, err := m.CreateIDToken("acct-1", "a@b.co", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.ParseIDToken(tok); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{IDTokenTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.CreateIDToken("acct-1", "a@b.co", ""); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)},
		{IDTokenTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{IDTokenTTL: time.Minute, SigningMethod: MethodEd25519},
		{IDTokenTTL: time.Minute, SigningMethod: "rs256"},
		{IDTokenTTL: time.Minute, CustomTokenTTL: 2 * time.Hour, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

// FuzzParseIDToken checks arbitrary input never panics the parser.
func FuzzParseIDToken(f *testing.F) {
	m := newTestManager(f, nil)
	valid, _, err := m.CreateIDToken("acct-1", "a@b.co", "A")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := m.ParseIDToken(input)
		if err == nil && claims == nil {
			t.Fatal("ParseIDToken returned nil claims without error")
		}
	})
}
