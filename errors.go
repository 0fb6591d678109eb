package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/authcore-io/authcore/session"
)

// Sentinel errors surfaced by the engine. Callers branch with errors.Is;
// typed wrappers below carry the structured detail.
var (
	// ErrInvalidCredentials covers every authentication failure that must
	// not reveal whether the account exists: unknown email, wrong password,
	// deactivated account.
	ErrInvalidCredentials = errors.New("authcore: invalid credentials")

	// ErrAccountLocked is returned while a brute-force lockout is in effect.
	ErrAccountLocked = errors.New("authcore: account locked")

	// ErrMFAPending is returned when a session that has not completed its
	// second factor is presented for a protected operation.
	ErrMFAPending = errors.New("authcore: mfa pending")

	// ErrWeakPassword is the errors.Is target of [WeakPasswordError].
	ErrWeakPassword = errors.New("authcore: password too weak")

	ErrAlreadyExists = errors.New("authcore: already exists")
	ErrNotFound      = errors.New("authcore: not found")

	// ErrInvalidToken covers unknown, malformed, and invalidated tokens.
	ErrInvalidToken = errors.New("authcore: invalid token")
	ErrTokenExpired = errors.New("authcore: token expired")

	ErrVerificationExpired   = errors.New("authcore: verification code expired")
	ErrVerificationInvalid   = errors.New("authcore: verification code invalid")
	ErrVerificationThrottled = errors.New("authcore: verification send throttled")
	ErrTooManyAttempts       = errors.New("authcore: too many verification attempts")

	// ErrRateLimitExceeded is the errors.Is target of [RateLimitError].
	ErrRateLimitExceeded = errors.New("authcore: rate limit exceeded")

	ErrReplay       = errors.New("authcore: request replayed")
	ErrStaleRequest = errors.New("authcore: request timestamp outside tolerance")

	// ErrChallengeRequired is the errors.Is target of [ChallengeError].
	ErrChallengeRequired = errors.New("authcore: challenge required")

	// ErrCredentialCloned is returned when a credential assertion presents a
	// signature counter at or below the stored one, which indicates a cloned
	// authenticator. All of the user's sessions are terminated first.
	ErrCredentialCloned = errors.New("authcore: credential cloned")

	// ErrServiceUnavailable is returned when a backing store cannot be
	// reached. Security controls fail closed onto this error.
	ErrServiceUnavailable = errors.New("authcore: service unavailable")

	// ErrInternal is returned for unexpected failures. The full cause is
	// logged under a correlation id; callers only see the id.
	ErrInternal = errors.New("authcore: internal error")
)

// WeakPasswordError reports a password that scored below the configured
// strength threshold.
type WeakPasswordError struct {
	Score     int
	Threshold int
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("authcore: password too weak (score %d, need %d)", e.Score, e.Threshold)
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }

// RateLimitError reports a request shed by the per-route rate limiter.
type RateLimitError struct {
	Used   int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("authcore: rate limit exceeded (%d used in %s)", e.Used, e.Window)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// AccountLockedError carries the remaining lockout duration.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("authcore: account locked (retry after %s)", e.RetryAfter)
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// ChallengeError reports that the credential-stuffing detector demands a
// challenge before the login may proceed.
type ChallengeError struct {
	Kind string
	// RetryAfter is non-zero for IP blocks.
	RetryAfter time.Duration
}

func (e *ChallengeError) Error() string {
	return "authcore: challenge required (" + e.Kind + ")"
}

func (e *ChallengeError) Is(target error) bool { return target == ErrChallengeRequired }

// SessionInvalidatedError reports a token whose session was explicitly
// terminated, with the recorded reason.
type SessionInvalidatedError struct {
	Reason session.Reason
}

func (e *SessionInvalidatedError) Error() string {
	return "authcore: session invalidated (" + string(e.Reason) + ")"
}

func (e *SessionInvalidatedError) Is(target error) bool { return target == ErrInvalidToken }
