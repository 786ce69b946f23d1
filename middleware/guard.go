package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/wanderauth/idp"
)

// IDTokenVerifier is satisfied by *wanderauth.Engine.
type IDTokenVerifier interface {
	VerifyIDToken(token string) (idp.Account, error)
}

type accountContextKey struct{}

// AccountFromContext returns the account a guarded request authenticated as.
func AccountFromContext(ctx context.Context) (idp.Account, bool) {
	acct, ok := ctx.Value(accountContextKey{}).(idp.Account)
	return acct, ok
}

// RequireIDToken rejects requests without a valid bearer ID token and
// stores the token's account in the request context.
func RequireIDToken(verifier IDTokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			acct, err := verifier.VerifyIDToken(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey{}, acct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
