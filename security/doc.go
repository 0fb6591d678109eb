// Package security implements the admission controls wrapped around the
// authentication core: brute-force limiting, credential-stuffing detection,
// request rate limiting, replay-nonce tracking, and device-fingerprint
// comparison.
//
// All shared state lives in an expiring key-value store under keys shaped
// security:{tenant}:{kind}:{id}. Writes use atomic INCR/EXPIRE or SET NX PX
// so concurrent processes never race on check-then-set. When the store is
// unreachable every control fails closed: the request is rejected with
// [ErrUnavailable] rather than admitted unchecked.
package security
