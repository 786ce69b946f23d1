// Package wanderauth is the authentication core of the travel site client.
//
// An [Engine] is assembled with [New] and [Builder.Build] and drives four
// flows against an identity provider and a document store:
//
//   - Identifier resolution. Login accepts an email, a phone number or a
//     username. Phone numbers map to a placeholder auth email and usernames
//     are looked up in the profile collection.
//   - Password sign-in with email verification fallback. Accounts imported
//     from the legacy system fail the provider's credential check; they
//     receive a six-digit code and [Engine.ConfirmLoginOTP] signs them in
//     through a custom token.
//   - Registration. [Engine.StartRegistration] validates the form and sends
//     a code; [Engine.ConfirmRegistration] creates the account and writes its
//     profile.
//   - Bootstrap. [Engine.Bootstrap] waits for the first auth-state resolution
//     and the landing page hero image before [Engine.Ready] reports true. A
//     persisted admin session skips the provider.
//
// The engine keeps a single verification challenge, mirroring the auth
// modal. Opening the modal, closing it, or requesting a new code replaces
// whatever challenge was outstanding.
//
// Failures are reported through the sentinel errors in this package and
// match with [errors.Is]. Audit events and metrics are optional and
// configured through [Config].
package wanderauth
