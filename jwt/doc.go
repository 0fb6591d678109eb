// Package jwt manages bearer access-token issuance and verification with
// HMAC-SHA-256 signing and strict validation semantics. Expired tokens are
// reported distinctly from malformed or untrusted ones so callers can choose
// between a refresh hint and a hard rejection.
package jwt
