package authcore

import (
	"errors"
	"time"

	"github.com/authcore-io/authcore/password"
	"github.com/authcore-io/authcore/security"
)

const minSecretBytes = 32

// Config tunes the engine. Zero values fall back to the documented defaults;
// the two secrets have no defaults and must each be at least 32 random bytes.
// Features that default to on are expressed as Disable flags so the zero
// value is the recommended configuration.
type Config struct {
	// JWTSecret signs access tokens. Required, >= 32 bytes.
	JWTSecret []byte
	// JWTLifetime bounds access-token validity. Default 1h.
	JWTLifetime time.Duration
	JWTIssuer   string
	// JWTLeeway tolerates clock skew during verification. At most 2m.
	JWTLeeway time.Duration

	// SessionSalt is mixed into session-token hashes so a database dump
	// alone cannot forge lookups. Required, >= 32 bytes.
	SessionSalt []byte
	// SessionLifetime is the absolute session expiry. Default 24h.
	SessionLifetime time.Duration
	// ActivityUpdateInterval throttles last-activity writes. Default 5m.
	ActivityUpdateInterval time.Duration
	// CleanupInterval spaces the background purge runs. Default 1h.
	CleanupInterval time.Duration
	// InvalidRetention keeps expired and invalidated sessions queryable for
	// audit before the purge deletes them. Default 90 days.
	InvalidRetention time.Duration
	// MaxSessionsPerUser caps concurrent active sessions; the oldest are
	// evicted at the cap. Default 5.
	MaxSessionsPerUser int

	// DisableRotation turns off periodic opaque-token rotation.
	DisableRotation bool
	// RotationInterval spaces rotations when enabled. Default 12h.
	RotationInterval time.Duration

	// DisableFingerprinting turns off device-fingerprint drift checks.
	DisableFingerprinting bool
	// FingerprintDriftThreshold is the similarity below which a login is
	// treated as coming from an unrecognized device. Default 0.6.
	FingerprintDriftThreshold float64

	// VerificationCodeLength is the number of digits in a code. Default 6.
	VerificationCodeLength int
	// VerificationExpiration bounds code validity. Default 10m.
	VerificationExpiration time.Duration
	// VerificationMaxAttempts caps wrong guesses per code. Default 5.
	VerificationMaxAttempts int
	// VerificationThrottle is the minimum gap between sends to the same
	// user and channel. Default 60s.
	VerificationThrottle time.Duration

	// BruteForce, RateLimit, Replay and Stuffing tune the admission
	// controls; zero values use the security package defaults.
	BruteForce security.BruteForceConfig
	RateLimit  security.RateLimitConfig
	Replay     security.ReplayConfig
	Stuffing   security.StuffingConfig

	// Password tunes the Argon2id hasher; zero values use the hasher
	// defaults.
	Password password.Config
	// MinPasswordScore is the zxcvbn score (0-4) a new password must reach.
	// Default 2.
	MinPasswordScore int

	// AuditBufferSize bounds the audit dispatch queue. Default 1024.
	AuditBufferSize int

	// Now overrides the engine clock; tests use it to step time.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.JWTLifetime <= 0 {
		c.JWTLifetime = time.Hour
	}
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = 24 * time.Hour
	}
	if c.ActivityUpdateInterval <= 0 {
		c.ActivityUpdateInterval = 5 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
	if c.InvalidRetention <= 0 {
		c.InvalidRetention = 90 * 24 * time.Hour
	}
	if c.MaxSessionsPerUser <= 0 {
		c.MaxSessionsPerUser = 5
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = 12 * time.Hour
	}
	if c.FingerprintDriftThreshold <= 0 {
		c.FingerprintDriftThreshold = security.DefaultDriftThreshold
	}
	if c.VerificationCodeLength <= 0 {
		c.VerificationCodeLength = 6
	}
	if c.VerificationExpiration <= 0 {
		c.VerificationExpiration = 10 * time.Minute
	}
	if c.VerificationMaxAttempts <= 0 {
		c.VerificationMaxAttempts = 5
	}
	if c.VerificationThrottle <= 0 {
		c.VerificationThrottle = 60 * time.Second
	}
	if c.MinPasswordScore <= 0 {
		c.MinPasswordScore = password.DefaultMinScore
	}
	if c.AuditBufferSize <= 0 {
		c.AuditBufferSize = 1024
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Validate rejects configurations that must not reach production. Secrets are
// checked here rather than at first use so a misconfigured process fails at
// startup.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretBytes {
		return errors.New("authcore: jwt secret must be at least 32 bytes")
	}
	if len(c.SessionSalt) < minSecretBytes {
		return errors.New("authcore: session salt must be at least 32 bytes")
	}
	if c.JWTLeeway < 0 || c.JWTLeeway > 2*time.Minute {
		return errors.New("authcore: jwt leeway must be between 0 and 2m")
	}
	if c.FingerprintDriftThreshold > 1 {
		return errors.New("authcore: fingerprint drift threshold must be at most 1")
	}
	if c.MinPasswordScore > 4 {
		return errors.New("authcore: minimum password score must be at most 4")
	}
	return nil
}
