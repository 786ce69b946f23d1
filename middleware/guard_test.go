package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/wanderauth/idp"
)

type verifierFunc func(string) (idp.Account, error)

func (f verifierFunc) VerifyIDToken(token string) (idp.Account, error) { return f(token) }

func TestRequireIDToken(t *testing.T) {
	verifier := verifierFunc(func(token string) (idp.Account, error) {
		if token != "good" {
			return idp.Account{}, errors.New("bad token")
		}
		return idp.Account{ID: "acct-1", Email: "a@example.com"}, nil
	})

	var seen idp.Account
	handler := RequireIDToken(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := AccountFromContext(r.Context())
		if !ok {
			t.Fatal("expected account in context")
		}
		seen = acct
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer good", want: http.StatusNoContent},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "rejected", header: "Bearer forged", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/trips", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if seen.ID != "acct-1" {
		t.Fatalf("expected handler to see acct-1, got %+v", seen)
	}
}

func TestRequireIDTokenNilVerifier(t *testing.T) {
	handler := RequireIDToken(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
