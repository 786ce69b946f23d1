// Package jwt issues and verifies the two token kinds used by the identity
// provider: session ID tokens and short-lived custom sign-in tokens minted by
// the admin path. A token of one kind never parses as the other.
package jwt
