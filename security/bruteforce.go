package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/repository"
)

var (
	// ErrLocked means the account passed the hard failure threshold and is
	// locked for the configured duration.
	ErrLocked = errors.New("security: account locked")
	// ErrUnavailable means the backing store could not answer. Admission
	// fails closed on this error.
	ErrUnavailable = errors.New("security: store unavailable")
)

const (
	defaultBruteWindow   = 15 * time.Minute
	defaultSoftThreshold = 5
	defaultHardThreshold = 10
	defaultDelayBase     = 250 * time.Millisecond
	defaultDelayCap      = 5 * time.Second
	defaultLockout       = 30 * time.Minute
)

// BruteForceConfig tunes the failed-login limiter.
type BruteForceConfig struct {
	Window          time.Duration
	SoftThreshold   int
	HardThreshold   int
	DelayBase       time.Duration
	DelayCap        time.Duration
	LockoutDuration time.Duration
}

func (c *BruteForceConfig) applyDefaults() {
	if c.Window <= 0 {
		c.Window = defaultBruteWindow
	}
	if c.SoftThreshold <= 0 {
		c.SoftThreshold = defaultSoftThreshold
	}
	if c.HardThreshold <= 0 {
		c.HardThreshold = defaultHardThreshold
	}
	if c.DelayBase <= 0 {
		c.DelayBase = defaultDelayBase
	}
	if c.DelayCap <= 0 {
		c.DelayCap = defaultDelayCap
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = defaultLockout
	}
}

// Verdict is the limiter's answer for one admission check.
type Verdict struct {
	// Attempts is the larger of the account and source-IP failure counts
	// inside the current window.
	Attempts int
	// Delay is the progressive penalty the caller should apply before
	// answering. It counts the attempt being admitted on top of the
	// recorded failures, so the delay starts on the attempt that reaches
	// the soft threshold. Zero below it.
	Delay time.Duration
	// Locked reports whether the account lockout is in force; RetryAfter
	// is the remaining lockout time.
	Locked     bool
	RetryAfter time.Duration
}

// BruteForceLimiter counts failed login attempts per account and per source
// IP inside a rolling window, applies a progressive delay past the soft
// threshold, and locks the account past the hard one.
type BruteForceLimiter struct {
	redis  redis.UniversalClient
	config BruteForceConfig
}

// NewBruteForceLimiter returns a limiter backed by the given client.
func NewBruteForceLimiter(redisClient redis.UniversalClient, cfg BruteForceConfig) *BruteForceLimiter {
	cfg.applyDefaults()
	return &BruteForceLimiter{redis: redisClient, config: cfg}
}

// Check inspects current counters without mutating them. It returns
// [ErrLocked] when the account lockout is in force; the Verdict is populated
// in both cases.
func (l *BruteForceLimiter) Check(ctx context.Context, email, ip string) (Verdict, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return Verdict{}, err
	}

	ttl, err := l.redis.PTTL(ctx, key(tenantID, "lock", email)).Result()
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl > 0 {
		return Verdict{Locked: true, RetryAfter: ttl}, ErrLocked
	}

	attempts, err := l.maxCount(ctx, tenantID, email, ip)
	if err != nil {
		return Verdict{}, err
	}

	// The admitted attempt is not recorded yet; it counts toward the
	// penalty for this very attempt.
	return Verdict{Attempts: attempts, Delay: l.delayFor(attempts + 1)}, nil
}

// RecordFailure bumps the account and source-IP counters and reports whether
// this failure tripped the hard threshold and locked the account.
func (l *BruteForceLimiter) RecordFailure(ctx context.Context, email, ip string) (bool, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return false, err
	}

	count, err := l.incrementWithTTL(ctx, key(tenantID, "fail", email))
	if err != nil {
		return false, err
	}

	if ip != "" {
		ipCount, err := l.incrementWithTTL(ctx, key(tenantID, "failip", ip))
		if err != nil {
			return false, err
		}
		if ipCount > count {
			count = ipCount
		}
	}

	if count < int64(l.config.HardThreshold) {
		return false, nil
	}

	if err := l.redis.SetNX(ctx, key(tenantID, "lock", email), 1, l.config.LockoutDuration).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

// Reset clears the account's failure counter and lockout after a successful
// login. The source-IP counter is left alone: one good login from an address
// does not vouch for the rest of its traffic.
func (l *BruteForceLimiter) Reset(ctx context.Context, email string) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	keys := []string{key(tenantID, "fail", email), key(tenantID, "lock", email)}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FailureCount returns the account's current failure count. Missing keys
// read as zero and do not reveal account existence.
func (l *BruteForceLimiter) FailureCount(ctx context.Context, email string) (int, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}
	return l.getCount(ctx, key(tenantID, "fail", email))
}

func (l *BruteForceLimiter) delayFor(attempts int) time.Duration {
	if attempts < l.config.SoftThreshold {
		return 0
	}
	over := attempts - l.config.SoftThreshold
	if over > 30 {
		return l.config.DelayCap
	}
	delay := l.config.DelayBase << uint(over)
	if delay > l.config.DelayCap || delay <= 0 {
		delay = l.config.DelayCap
	}
	return delay
}

func (l *BruteForceLimiter) maxCount(ctx context.Context, tenantID, email, ip string) (int, error) {
	count, err := l.getCount(ctx, key(tenantID, "fail", email))
	if err != nil {
		return 0, err
	}
	if ip != "" {
		ipCount, err := l.getCount(ctx, key(tenantID, "failip", ip))
		if err != nil {
			return 0, err
		}
		if ipCount > count {
			count = ipCount
		}
	}
	return count, nil
}

func (l *BruteForceLimiter) getCount(ctx context.Context, k string) (int, error) {
	count, err := l.redis.Get(ctx, k).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(count), nil
}

func (l *BruteForceLimiter) incrementWithTTL(ctx context.Context, k string) (int64, error) {
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}
