package security_test

import (
	"errors"
	"testing"
	"time"

	"github.com/authcore-io/authcore/security"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiterBurstThenRefill(t *testing.T) {
	rdb, _ := newRedis(t)
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := security.NewRateLimiter(rdb, security.RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
		Now:               clk.Now,
	})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 5; i++ {
		if err := limiter.Allow(ctx, "login", "203.0.113.7"); err != nil {
			t.Fatalf("request %d should pass within the burst: %v", i+1, err)
		}
	}

	err := limiter.Allow(ctx, "login", "203.0.113.7")
	if !errors.Is(err, security.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var rle *security.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if rle.Used != 6 {
		t.Fatalf("used = %d, want 6", rle.Used)
	}
	if rle.Window != time.Minute {
		t.Fatalf("window = %v, want 1m", rle.Window)
	}

	// 60 rpm refills one token per second.
	clk.Advance(time.Second)
	if err := limiter.Allow(ctx, "login", "203.0.113.7"); err != nil {
		t.Fatalf("request after refill should pass: %v", err)
	}
}

func TestRateLimiterBucketsAreIndependent(t *testing.T) {
	rdb, _ := newRedis(t)
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := security.NewRateLimiter(rdb, security.RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		Now:               clk.Now,
	})

	if err := limiter.Allow(tenantCtx("tenant-1"), "login", "203.0.113.7"); err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if err := limiter.Allow(tenantCtx("tenant-1"), "login", "203.0.113.7"); !errors.Is(err, security.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on the drained bucket, got %v", err)
	}

	// Other route, other identifier, other tenant: all fresh buckets.
	if err := limiter.Allow(tenantCtx("tenant-1"), "register", "203.0.113.7"); err != nil {
		t.Fatalf("other route should have its own bucket: %v", err)
	}
	if err := limiter.Allow(tenantCtx("tenant-1"), "login", "198.51.100.9"); err != nil {
		t.Fatalf("other identifier should have its own bucket: %v", err)
	}
	if err := limiter.Allow(tenantCtx("tenant-2"), "login", "203.0.113.7"); err != nil {
		t.Fatalf("other tenant should have its own bucket: %v", err)
	}
}

func TestRateLimiterBackwardsClockDoesNotMintTokens(t *testing.T) {
	rdb, _ := newRedis(t)
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := security.NewRateLimiter(rdb, security.RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		Now:               clk.Now,
	})
	ctx := tenantCtx("tenant-1")

	if err := limiter.Allow(ctx, "login", "203.0.113.7"); err != nil {
		t.Fatalf("Allow error: %v", err)
	}

	clk.Advance(-time.Hour)

	if err := limiter.Allow(ctx, "login", "203.0.113.7"); !errors.Is(err, security.ErrRateLimited) {
		t.Fatalf("a backwards clock must not refill the bucket, got %v", err)
	}
}

func TestRateLimiterFailsClosed(t *testing.T) {
	rdb, mr := newRedis(t)
	limiter := security.NewRateLimiter(rdb, security.RateLimitConfig{})
	ctx := tenantCtx("tenant-1")

	mr.Close()

	if err := limiter.Allow(ctx, "login", "203.0.113.7"); !errors.Is(err, security.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with the store down, got %v", err)
	}
}

func TestLocalRateLimiter(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := security.NewLocalRateLimiter(security.RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
		Now:               clk.Now,
	})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 5; i++ {
		if err := limiter.Allow(ctx, "login", "203.0.113.7"); err != nil {
			t.Fatalf("request %d should pass within the burst: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, "login", "203.0.113.7"); !errors.Is(err, security.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	clk.Advance(time.Second)
	if err := limiter.Allow(ctx, "login", "203.0.113.7"); err != nil {
		t.Fatalf("request after refill should pass: %v", err)
	}
}
