// Package session binds the identity provider's session lifecycle to the
// live Profile Record of the signed-in account.
//
// # Teardown
//
// A Binding holds at most one profile subscription. Every switch (sign-in,
// sign-out, account change, Stop) bumps a generation counter under the
// binding mutex and closes the previous subscription before any new state is
// applied. Callbacks compare their captured generation under the same mutex,
// so a late delivery from a torn-down subscription never mutates state.
//
// # What this package must NOT do
//
//   - Write profile records; registration owns creation.
//   - Call back into the provider beyond SubscribeAuthState.
package session
