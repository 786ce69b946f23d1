// Package password hashes and verifies account passwords for the Redis-backed
// identity provider.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # Retired schemes
//
// Accounts imported from the previous site carry credentials in schemes this
// package no longer verifies (bcrypt, salted SHA-1, MD5). [Hasher.Verify]
// returns [ErrRetiredScheme] for them so the provider can report an invalid
// credential and the caller can fall back to email verification.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other wanderauth package.
//   - Log plaintext passwords.
package password
