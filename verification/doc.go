// Package verification implements one-time code issuance and checking for
// out-of-band channel confirmation (email, SMS).
//
// Codes are short random digit strings generated from a CSPRNG with
// rejection sampling. At most one pending code exists per (user, type);
// issuing a new one supersedes the previous. Verification is attempt-limited
// and compares in constant time. The plaintext code lives only in the
// outbound message and the pending record; it is never logged.
package verification
