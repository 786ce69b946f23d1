// Package identifier maps a free-form login identifier (email, phone number
// or username) to the canonical email presented to the identity provider.
package identifier

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultPlaceholderDomain is the domain of emails synthesized from phone numbers.
const DefaultPlaceholderDomain = "travelapp.local"

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	// ErrEmpty is returned for blank identifiers. It is a validation error
	// and never reaches the profile store.
	ErrEmpty = errors.New("identifier is empty")
	// ErrNotFound is returned when a username matches no profile record.
	ErrNotFound = errors.New("username not found")
)

// LookupError reports a failed username query. The cause is preserved.
type LookupError struct {
	Username string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("username lookup %q failed: %v", e.Username, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Kind is the classification of an identifier.
type Kind uint8

const (
	KindEmail Kind = iota + 1
	KindPhone
	KindUsername
)

func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindUsername:
		return "username"
	default:
		return "unknown"
	}
}

// Classify applies the fixed order email, phone, username.
func Classify(s string) Kind {
	if emailPattern.MatchString(s) {
		return KindEmail
	}
	if isPhone(s) {
		return KindPhone
	}
	return KindUsername
}

// IsEmail reports whether s is shaped like local@domain.tld.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsPhone reports whether s is 10 to 15 ASCII digits.
func IsPhone(s string) bool {
	return isPhone(s)
}

func isPhone(s string) bool {
	if len(s) < minPhoneDigits || len(s) > maxPhoneDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SynthesizeEmail builds the placeholder auth email for a phone number.
func SynthesizeEmail(digits, domain string) string {
	if domain == "" {
		domain = DefaultPlaceholderDomain
	}
	return digits + "@" + domain
}

// IsSynthesized reports whether email is a placeholder built by SynthesizeEmail.
func IsSynthesized(email, domain string) bool {
	if domain == "" {
		domain = DefaultPlaceholderDomain
	}
	local, host, ok := strings.Cut(email, "@")
	return ok && host == domain && isPhone(local)
}

// UsernameIndex finds the auth email registered for a normalized username.
// found is false, with a nil error, when no record matches.
type UsernameIndex interface {
	LookupUsername(ctx context.Context, username string) (email string, found bool, err error)
}

// Resolution is the outcome of resolving one identifier.
type Resolution struct {
	Input string
	Kind  Kind
	Email string
}

// Options tunes a Resolver.
type Options struct {
	PlaceholderDomain string
}

// Resolver classifies identifiers and produces canonical auth emails.
type Resolver struct {
	index  UsernameIndex
	domain string
}

func NewResolver(index UsernameIndex, opts Options) *Resolver {
	domain := opts.PlaceholderDomain
	if domain == "" {
		domain = DefaultPlaceholderDomain
	}
	return &Resolver{
		index:  index,
		domain: domain,
	}
}

// PlaceholderDomain returns the domain used for synthesized emails.
func (r *Resolver) PlaceholderDomain() string {
	return r.domain
}

// Resolve maps the identifier to a canonical auth email. Only the username
// branch touches the profile store.
func (r *Resolver) Resolve(ctx context.Context, input string) (Resolution, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Resolution{}, ErrEmpty
	}

	kind := Classify(input)
	res := Resolution{Input: input, Kind: kind}

	switch kind {
	case KindEmail:
		res.Email = input
		return res, nil
	case KindPhone:
		res.Email = SynthesizeEmail(input, r.domain)
		return res, nil
	}

	if r.index == nil {
		return res, &LookupError{Username: input, Err: errors.New("no username index configured")}
	}

	username := strings.ToLower(input)
	email, found, err := r.index.LookupUsername(ctx, username)
	if err != nil {
		return res, &LookupError{Username: username, Err: err}
	}
	if !found {
		return res, ErrNotFound
	}

	res.Email = email
	return res, nil
}
