package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/authcore-io/authcore/repository"
)

// ErrRateLimited is matched by errors.Is against *RateLimitError.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// RateLimitError reports a rejected request: how many requests the bucket has
// seen in the current window and how long the window is.
type RateLimitError struct {
	Used   int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("security: rate limit exceeded (%d requests in %s)", e.Used, e.Window)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// RateLimitConfig tunes the token bucket.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	// Now overrides the reference clock; tests use it to step time.
	// Refill arithmetic uses the stored per-bucket timestamp, so a
	// backwards step never mints tokens.
	Now func() time.Time
}

func (c *RateLimitConfig) applyDefaults() {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	if c.BurstSize <= 0 {
		c.BurstSize = 5
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// tokenBucketScript refills and drains one bucket atomically. The caller's
// clock arrives as an argument so the script stays deterministic; negative
// elapsed time (clock skew between callers) is clamped to zero.
//
// KEYS[1] bucket hash
// ARGV[1] refill rate, tokens per millisecond
// ARGV[2] burst size
// ARGV[3] caller clock, unix milliseconds
// ARGV[4] key TTL, milliseconds
// ARGV[5] window length, milliseconds
//
// Returns {allowed, used}.
var tokenBucketScript = redis.NewScript(`
local data = redis.call('HMGET', KEYS[1], 'tokens', 'refill', 'used', 'winstart')
local rrate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window = tonumber(ARGV[5])

local tokens = tonumber(data[1])
local refill = tonumber(data[2])
local used = tonumber(data[3])
local winstart = tonumber(data[4])
if tokens == nil then
  tokens = burst
  refill = now
  used = 0
  winstart = now
end

local elapsed = now - refill
if elapsed < 0 then elapsed = 0 end
tokens = tokens + elapsed * rrate
if tokens > burst then tokens = burst end

if now - winstart >= window then
  used = 0
  winstart = now
end
used = used + 1

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'refill', now, 'used', used, 'winstart', winstart)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {allowed, used}
`)

// RateLimiter is a shared token bucket per (tenant, route, identifier),
// backed by the expiring KV store so every process drains the same bucket.
type RateLimiter struct {
	redis  redis.UniversalClient
	config RateLimitConfig
}

// NewRateLimiter returns a limiter backed by the given client.
func NewRateLimiter(redisClient redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	cfg.applyDefaults()
	return &RateLimiter{redis: redisClient, config: cfg}
}

// Allow drains one token from the (tenant, route, identifier) bucket.
// A drained bucket returns *RateLimitError; a store failure returns
// [ErrUnavailable] and the request must be rejected.
func (l *RateLimiter) Allow(ctx context.Context, route, identifier string) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	window := time.Minute
	refillPerMs := float64(l.config.RequestsPerMinute) / float64(window.Milliseconds())
	ttl := 2 * window

	res, err := tokenBucketScript.Run(ctx, l.redis,
		[]string{key(tenantID, "rate", route+":"+identifier)},
		strconv.FormatFloat(refillPerMs, 'f', -1, 64),
		l.config.BurstSize,
		l.config.Now().UnixMilli(),
		ttl.Milliseconds(),
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}

	if res[0] != 1 {
		return &RateLimitError{Used: int(res[1]), Window: window}
	}
	return nil
}

// LocalRateLimiter is the in-process variant for single-node deployments and
// tests. Buckets are pruned lazily once the table grows past maxBuckets.
type LocalRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	config  RateLimitConfig
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const maxBuckets = 16384

// NewLocalRateLimiter returns an in-process token-bucket limiter.
func NewLocalRateLimiter(cfg RateLimitConfig) *LocalRateLimiter {
	cfg.applyDefaults()
	return &LocalRateLimiter{
		buckets: make(map[string]*localBucket),
		config:  cfg,
	}
}

// Allow drains one token from the (tenant, route, identifier) bucket.
func (l *LocalRateLimiter) Allow(ctx context.Context, route, identifier string) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	now := l.config.Now()

	l.mu.Lock()
	k := key(tenantID, "rate", route+":"+identifier)
	bucket, ok := l.buckets[k]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.prune(now)
		}
		bucket = &localBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(l.config.RequestsPerMinute)/60.0), l.config.BurstSize),
		}
		l.buckets[k] = bucket
	}
	bucket.lastSeen = now
	allowed := bucket.limiter.AllowN(now, 1)
	l.mu.Unlock()

	if !allowed {
		return &RateLimitError{Used: l.config.BurstSize, Window: time.Minute}
	}
	return nil
}

// prune drops buckets idle for over a minute; callers hold the mutex.
func (l *LocalRateLimiter) prune(now time.Time) {
	for k, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > time.Minute {
			delete(l.buckets, k)
		}
	}
}
