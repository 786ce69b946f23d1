// Package profile models the per-account Profile Record and its access
// paths in the document store.
package profile

import (
	"strings"
	"time"
)

// Role is the application role stored on a profile.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Collection is the document-store collection holding profile records.
const Collection = "users"

// Indexed fields of the users collection.
const (
	UsernameField = "username"
	EmailField    = "email"
)

// Indexes is the document-store index configuration profile lookups rely on.
func Indexes() map[string][]string {
	return map[string][]string{Collection: {UsernameField, EmailField}}
}

// Record is the mutable per-account document keyed by account id. Optional
// members are nil when the registration path did not provide them.
type Record struct {
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Mobile    *string    `json:"mobile,omitempty"`
	Username  *string    `json:"username,omitempty"`
	Role      Role       `json:"role"`
	RealEmail *string    `json:"realEmail,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// IsAdmin reports whether the record carries the admin role.
func (r Record) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// ContactEmail is the address mail should go to: RealEmail when the auth
// email is a synthesized placeholder, Email otherwise.
func (r Record) ContactEmail() string {
	if r.RealEmail != nil && *r.RealEmail != "" {
		return *r.RealEmail
	}
	return r.Email
}

// Draft carries the registration inputs an initial record is built from.
type Draft struct {
	AuthEmail string
	Name      string
	Mobile    string
	Username  string
	// RealEmail is recorded only when Synthesized is true.
	RealEmail   string
	Synthesized bool
	CreatedAt   time.Time
}

// New builds the initial record written at registration completion.
func New(d Draft) Record {
	created := d.CreatedAt.UTC()
	rec := Record{
		Email:     d.AuthEmail,
		Name:      strings.TrimSpace(d.Name),
		Role:      RoleUser,
		CreatedAt: &created,
	}
	if mobile := strings.TrimSpace(d.Mobile); mobile != "" {
		rec.Mobile = &mobile
	}
	if username := NormalizeUsername(d.Username); username != "" {
		rec.Username = &username
	}
	if d.Synthesized {
		if addr := strings.TrimSpace(d.RealEmail); addr != "" {
			rec.RealEmail = &addr
		}
	}
	return rec
}

// Synthesize builds the minimal profile used while an account has no stored
// record yet.
func Synthesize(email, displayName string) Record {
	return Record{
		Email: email,
		Name:  displayName,
		Role:  RoleUser,
	}
}

// NormalizeUsername is the canonical form usernames are stored and queried in.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Path returns the document path of the record owned by accountID.
func Path(accountID string) string {
	return Collection + "/" + accountID
}
