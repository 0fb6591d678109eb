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
	// ErrReplay means the nonce was already presented inside the replay
	// window.
	ErrReplay = errors.New("security: nonce replayed")
	// ErrStaleRequest means the request timestamp falls outside the
	// accepted clock skew.
	ErrStaleRequest = errors.New("security: stale request timestamp")
)

// ReplayConfig tunes the nonce guard.
type ReplayConfig struct {
	// Window is how long a nonce stays burned. Default 5 minutes.
	Window time.Duration
	// Skew is the accepted clock difference between client and server.
	// Default 30 seconds.
	Skew time.Duration
	// Now overrides the guard clock; tests use it to step time.
	Now func() time.Time
}

func (c *ReplayConfig) applyDefaults() {
	if c.Window <= 0 {
		c.Window = 5 * time.Minute
	}
	if c.Skew <= 0 {
		c.Skew = 30 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// ReplayGuard burns request nonces in the expiring KV store so a captured
// request cannot be presented twice inside the window.
type ReplayGuard struct {
	redis  redis.UniversalClient
	config ReplayConfig
}

// NewReplayGuard returns a guard backed by the given client.
func NewReplayGuard(redisClient redis.UniversalClient, cfg ReplayConfig) *ReplayGuard {
	cfg.applyDefaults()
	return &ReplayGuard{redis: redisClient, config: cfg}
}

// Check validates the request timestamp against the skew bound and burns the
// nonce. SET NX PX makes the burn atomic: of two concurrent presentations
// exactly one wins.
func (g *ReplayGuard) Check(ctx context.Context, nonce string, requestedAt time.Time) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}
	if nonce == "" {
		return ErrStaleRequest
	}

	drift := g.config.Now().Sub(requestedAt)
	if drift < 0 {
		drift = -drift
	}
	if drift > g.config.Skew {
		return ErrStaleRequest
	}

	ok, err := g.redis.SetNX(ctx, key(tenantID, "nonce", nonce), 1, g.config.Window).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrReplay
	}
	return nil
}
