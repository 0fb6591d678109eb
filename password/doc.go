// Package password implements password hashing, verification, and strength
// estimation for the authentication core.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The serialized form carries the algorithm id and parameters, so verification
// is self-describing. [Hasher.NeedsRehash] reports whether a stored hash was
// produced with weaker parameters than currently configured, so the caller can
// re-hash on the next successful login.
//
// # Strength estimation
//
// [Estimator] wraps a zxcvbn-class scorer. Candidate passwords are scored
// together with user-identifying inputs (email local part, display name) so
// that "alice2024!" is weak for alice@example.org even though it mixes
// character classes.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
