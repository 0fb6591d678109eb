package security_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/security"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return rdb, mr
}

func tenantCtx(tenant string) context.Context {
	return repository.WithTenant(context.Background(), tenant)
}

func TestBruteForceProgressiveDelay(t *testing.T) {
	rdb, _ := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{})
	ctx := tenantCtx("tenant-1")

	// The delay covers the attempt being admitted: with the soft threshold
	// at 5, attempt 4 is free and attempt 5 carries the base penalty.
	for i := 0; i < 3; i++ {
		if _, err := limiter.RecordFailure(ctx, "a@b.c", "203.0.113.7"); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	verdict, err := limiter.Check(ctx, "a@b.c", "203.0.113.7")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if verdict.Delay != 0 {
		t.Fatalf("delay for attempt 4 = %v, want 0", verdict.Delay)
	}

	if _, err := limiter.RecordFailure(ctx, "a@b.c", "203.0.113.7"); err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}

	verdict, err = limiter.Check(ctx, "a@b.c", "203.0.113.7")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if verdict.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4", verdict.Attempts)
	}
	if verdict.Delay != 250*time.Millisecond {
		t.Fatalf("delay for attempt 5 = %v, want 250ms", verdict.Delay)
	}

	// Each further failure doubles the next attempt's penalty.
	if _, err := limiter.RecordFailure(ctx, "a@b.c", "203.0.113.7"); err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	verdict, err = limiter.Check(ctx, "a@b.c", "203.0.113.7")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if verdict.Delay != 500*time.Millisecond {
		t.Fatalf("delay for attempt 6 = %v, want 500ms", verdict.Delay)
	}

	for i := 0; i < 2; i++ {
		if _, err := limiter.RecordFailure(ctx, "a@b.c", "203.0.113.7"); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}
	verdict, err = limiter.Check(ctx, "a@b.c", "203.0.113.7")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if verdict.Delay != 2*time.Second {
		t.Fatalf("delay for attempt 8 = %v, want 2s", verdict.Delay)
	}
}

func TestBruteForceDelayCap(t *testing.T) {
	rdb, _ := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{
		HardThreshold: 100, // keep the lockout out of the way
	})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 30; i++ {
		if _, err := limiter.RecordFailure(ctx, "a@b.c", ""); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	verdict, err := limiter.Check(ctx, "a@b.c", "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if verdict.Delay != 5*time.Second {
		t.Fatalf("delay = %v, want the 5s cap", verdict.Delay)
	}
}

func TestBruteForceLockout(t *testing.T) {
	rdb, _ := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{})
	ctx := tenantCtx("tenant-1")

	var locked bool
	for i := 0; i < 10; i++ {
		var err error
		locked, err = limiter.RecordFailure(ctx, "a@b.c", "203.0.113.7")
		if err != nil {
			t.Fatalf("RecordFailure #%d error: %v", i+1, err)
		}
	}
	if !locked {
		t.Fatal("expected the 10th failure to lock the account")
	}

	verdict, err := limiter.Check(ctx, "a@b.c", "203.0.113.7")
	if !errors.Is(err, security.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if !verdict.Locked || verdict.RetryAfter <= 0 {
		t.Fatalf("verdict = %+v, want locked with positive retry-after", verdict)
	}
}

func TestBruteForceResetClearsAccount(t *testing.T) {
	rdb, _ := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{})
	ctx := tenantCtx("tenant-1")

	for i := 0; i < 10; i++ {
		if _, err := limiter.RecordFailure(ctx, "a@b.c", ""); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	if err := limiter.Reset(ctx, "a@b.c"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}

	verdict, err := limiter.Check(ctx, "a@b.c", "")
	if err != nil {
		t.Fatalf("Check after reset error: %v", err)
	}
	if verdict.Locked || verdict.Attempts != 0 {
		t.Fatalf("verdict after reset = %+v, want clean slate", verdict)
	}

	count, err := limiter.FailureCount(ctx, "a@b.c")
	if err != nil || count != 0 {
		t.Fatalf("FailureCount = (%d, %v), want (0, nil)", count, err)
	}
}

func TestBruteForceTenantIsolation(t *testing.T) {
	rdb, _ := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{})

	for i := 0; i < 10; i++ {
		if _, err := limiter.RecordFailure(tenantCtx("tenant-a"), "a@b.c", ""); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	verdict, err := limiter.Check(tenantCtx("tenant-b"), "a@b.c", "")
	if err != nil {
		t.Fatalf("Check in other tenant error: %v", err)
	}
	if verdict.Attempts != 0 || verdict.Locked {
		t.Fatalf("tenant-b verdict = %+v, counters leaked across tenants", verdict)
	}
}

func TestBruteForceFailsClosed(t *testing.T) {
	rdb, mr := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{})
	ctx := tenantCtx("tenant-1")

	mr.Close()

	if _, err := limiter.Check(ctx, "a@b.c", ""); !errors.Is(err, security.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with the store down, got %v", err)
	}
	if _, err := limiter.RecordFailure(ctx, "a@b.c", ""); !errors.Is(err, security.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable with the store down, got %v", err)
	}
}

func TestBruteForceRequiresTenantScope(t *testing.T) {
	rdb, _ := newRedis(t)
	limiter := security.NewBruteForceLimiter(rdb, security.BruteForceConfig{})

	if _, err := limiter.Check(context.Background(), "a@b.c", ""); !errors.Is(err, repository.ErrTenant) {
		t.Fatalf("expected ErrTenant without scope, got %v", err)
	}
}
