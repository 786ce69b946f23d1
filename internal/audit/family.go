package audit

import "strings"

// Family groups event types by the flow that emits them.
type Family string

const (
	FamilyLogin        Family = "login"
	FamilyOTP          Family = "otp"
	FamilyRegistration Family = "registration"
	FamilyAdmin        Family = "admin"
	FamilySession      Family = "session"
	FamilyBootstrap    Family = "bootstrap"
	FamilyOther        Family = "other"
)

// Families lists every family in export order. FamilyOther is last.
var Families = []Family{
	FamilyLogin,
	FamilyOTP,
	FamilyRegistration,
	FamilyAdmin,
	FamilySession,
	FamilyBootstrap,
	FamilyOther,
}

var familyPrefixes = []struct {
	prefix string
	family Family
}{
	{"login_", FamilyLogin},
	{"otp_", FamilyOTP},
	{"registration_", FamilyRegistration},
	{"admin_", FamilyAdmin},
	{"sign_", FamilySession},
	{"bootstrap_", FamilyBootstrap},
}

// FamilyOf classifies an event type by its prefix.
func FamilyOf(eventType string) Family {
	for _, p := range familyPrefixes {
		if strings.HasPrefix(eventType, p.prefix) {
			return p.family
		}
	}
	return FamilyOther
}
