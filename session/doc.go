// Package session implements the server-side session lifecycle: creation
// with a per-user cap, lookup by opaque bearer token, activity tracking,
// periodic token rotation with a short grace window, typed invalidation, and
// retention cleanup.
//
// # Token model
//
// Bearer tokens are 256-bit random values in unpadded base64url. Storage only
// ever holds SHA-256(token || salt) where the salt is a process-wide secret;
// the raw token is returned exactly once at creation or rotation and cannot
// be recovered afterwards.
//
// # State machine
//
// A session is Active until it is invalidated or expires. Rotation is a
// transient step of Active. Invalidated is terminal: once IsValid is false
// the record is read-only and further invalidations are no-ops.
package session
