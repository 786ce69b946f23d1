// Package middleware adapts ID token verification to net/http.
//
// [RequireIDToken] reads the Authorization bearer token, verifies it with an
// [IDTokenVerifier] (normally *wanderauth.Engine) and makes the account
// available through [AccountFromContext]. Failures answer 401 without
// saying why.
package middleware
