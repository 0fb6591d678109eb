package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/internal"
	"github.com/authcore-io/authcore/repository"
)

// ErrInvalid is the negative answer for token lookups: the token does not
// resolve to a valid, unexpired session. It carries no detail about whether
// the session ever existed.
var ErrInvalid = errors.New("session: invalid token")

// InvalidatedError is returned when the presented token resolves to a session
// that has been invalidated. It matches [ErrInvalid] under errors.Is; the
// reason is only ever handed to the holder of a once-valid token.
type InvalidatedError struct {
	Reason Reason
}

func (e *InvalidatedError) Error() string {
	return "session: invalidated (" + string(e.Reason) + ")"
}

func (e *InvalidatedError) Is(target error) bool { return target == ErrInvalid }

const (
	defaultLifetime               = 24 * time.Hour
	defaultActivityUpdateInterval = 5 * time.Minute
	defaultMaxSessionsPerUser     = 5
	defaultRotationInterval       = 12 * time.Hour
	defaultRotationGrace          = 60 * time.Second
	defaultRetention              = 90 * 24 * time.Hour
	defaultCleanupBatch           = 500
)

// Config tunes the session engine. Zero values fall back to the documented
// defaults; Salt has no default and must be at least 32 random bytes.
type Config struct {
	Salt                   []byte
	Lifetime               time.Duration
	ActivityUpdateInterval time.Duration
	MaxSessionsPerUser     int
	RotationEnabled        bool
	RotationInterval       time.Duration
	RotationGrace          time.Duration
	InvalidRetention       time.Duration
	CleanupBatchSize       int
	// Now overrides the engine clock; tests use it to step time.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Lifetime <= 0 {
		c.Lifetime = defaultLifetime
	}
	if c.ActivityUpdateInterval <= 0 {
		c.ActivityUpdateInterval = defaultActivityUpdateInterval
	}
	if c.MaxSessionsPerUser <= 0 {
		c.MaxSessionsPerUser = defaultMaxSessionsPerUser
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = defaultRotationInterval
	}
	if c.RotationGrace <= 0 || c.RotationGrace > defaultRotationGrace {
		c.RotationGrace = defaultRotationGrace
	}
	if c.InvalidRetention <= 0 {
		c.InvalidRetention = defaultRetention
	}
	if c.CleanupBatchSize <= 0 {
		c.CleanupBatchSize = defaultCleanupBatch
	}
}

// CreateOptions carries the optional device context captured at login.
type CreateOptions struct {
	DeviceID          string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	Metadata          map[string]string
	MFAStatus         MFAStatus
}

// Result is returned by Lookup. RotatedToken is non-empty exactly when this
// lookup triggered a token rotation; the caller must hand it to the client.
type Result struct {
	Session      *Session
	RotatedToken string
}

// Engine drives the session lifecycle against a Repository.
type Engine struct {
	repo   Repository
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine validates cfg and returns a ready engine.
func NewEngine(repo Repository, cfg Config, logger *slog.Logger) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("session repository required")
	}
	if len(cfg.Salt) < 32 {
		return nil, errors.New("session salt must be at least 32 bytes")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		repo:   repo,
		config: cfg,
		logger: logger,
		now:    now,
	}, nil
}

// Create opens a session for an already-authenticated user and returns the
// record together with the raw bearer token. When the user is at the active
// session cap, the oldest active sessions are invalidated with
// [ReasonSessionLimit] before the new one is created.
func (e *Engine) Create(ctx context.Context, userID uuid.UUID, opts CreateOptions) (*Session, string, error) {
	tenantID, err := tenantFor(ctx)
	if err != nil {
		return nil, "", err
	}

	if err := e.enforceSessionCap(ctx, userID); err != nil {
		return nil, "", err
	}

	token, err := internal.NewSessionToken()
	if err != nil {
		return nil, "", err
	}

	now := e.now()
	status := opts.MFAStatus
	if status == "" {
		status = MFANone
	}

	sess := &Session{
		ID:                   uuid.New(),
		UserID:               userID,
		TenantID:             tenantID,
		TokenHash:            internal.HashSessionToken(token, e.config.Salt),
		ExpiresAt:            now.Add(e.config.Lifetime),
		CreatedAt:            now,
		LastActivityAt:       now,
		LastActivityUpdateAt: now,
		TokenRotatedAt:       now,
		DeviceID:             opts.DeviceID,
		DeviceFingerprint:    opts.DeviceFingerprint,
		IPAddress:            opts.IPAddress,
		UserAgent:            opts.UserAgent,
		Metadata:             opts.Metadata,
		IsValid:              true,
		MFAStatus:            status,
	}

	if err := e.repo.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	return sess, token, nil
}

// Lookup resolves a presented bearer token. Invalid, expired, and unknown
// tokens all come back as [ErrInvalid]; repository failures surface as-is and
// abort the caller. A lookup may refresh the activity timestamp (throttled,
// fire-and-forget) and may rotate the token when the rotation interval has
// elapsed.
func (e *Engine) Lookup(ctx context.Context, rawToken string) (*Result, error) {
	if rawToken == "" {
		return nil, ErrInvalid
	}

	hash := internal.HashSessionToken(rawToken, e.config.Salt)
	sess, err := e.repo.FindByTokenHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if sess == nil {
		return nil, ErrInvalid
	}
	if !sess.IsValid {
		return nil, &InvalidatedError{Reason: sess.InvalidatedReason}
	}

	now := e.now()

	if !sess.ExpiresAt.After(now) {
		// Expired but still marked valid: flip it so later reads are cheap.
		if _, invErr := e.repo.Invalidate(ctx, sess.ID, ReasonTokenExpired); invErr != nil {
			e.logger.Warn("failed to mark expired session invalid",
				"session_id", sess.ID, "error", invErr)
		}
		return nil, &InvalidatedError{Reason: ReasonTokenExpired}
	}

	viaPrevious := sess.PreviousTokenHash == hash && sess.TokenHash != hash
	if viaPrevious {
		if sess.PreviousValidUntil == nil || !sess.PreviousValidUntil.After(now) {
			return nil, ErrInvalid
		}
		// Grace-window hit: accept, but never rotate on the old token.
		return &Result{Session: sess}, nil
	}

	result := &Result{Session: sess}

	if e.config.RotationEnabled && now.Sub(sess.TokenRotatedAt) >= e.config.RotationInterval {
		rotated, err := e.rotate(ctx, sess, now)
		if err != nil {
			return nil, err
		}
		result.RotatedToken = rotated
	}

	e.maybeRefreshActivity(ctx, sess, now)

	return result, nil
}

// Invalidate terminates a single session. Idempotent: invalidating an
// already-invalid session reports false with no error.
func (e *Engine) Invalidate(ctx context.Context, id uuid.UUID, reason Reason) (bool, error) {
	return e.repo.Invalidate(ctx, id, reason)
}

// InvalidateAllByUser terminates every valid session of a user and returns
// the count.
func (e *Engine) InvalidateAllByUser(ctx context.Context, userID uuid.UUID, reason Reason) (int64, error) {
	return e.repo.InvalidateAllByUser(ctx, userID, reason)
}

// InvalidateByIP terminates every valid session created from the given
// address and returns the count.
func (e *Engine) InvalidateByIP(ctx context.Context, ip string, reason Reason) (int64, error) {
	if ip == "" {
		return 0, errors.New("ip address required")
	}
	return e.repo.InvalidateByIP(ctx, ip, reason)
}

// InvalidateByFilter terminates a user's sessions selected by filter and
// returns the count.
func (e *Engine) InvalidateByFilter(ctx context.Context, userID uuid.UUID, filter Filter, reason Reason) (int64, error) {
	switch filter {
	case FilterAll, FilterActive, FilterInactive:
	default:
		return 0, fmt.Errorf("unknown session filter %q", filter)
	}
	return e.repo.InvalidateByFilter(ctx, userID, filter, reason)
}

// ListByUser returns a user's sessions selected by filter.
func (e *Engine) ListByUser(ctx context.Context, userID uuid.UUID, filter Filter) ([]*Session, error) {
	return e.repo.ListByUser(ctx, userID, filter)
}

// UpdateMFAStatus advances the second-factor state of a session.
func (e *Engine) UpdateMFAStatus(ctx context.Context, id uuid.UUID, status MFAStatus) error {
	return e.repo.UpdateMFAStatus(ctx, id, status)
}

// Cleanup purges sessions whose expiry is older than the retention period,
// in bounded batches, and returns the total purged. Re-entrant and safe to
// run concurrently across processes.
func (e *Engine) Cleanup(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.config.InvalidRetention)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := e.repo.DeleteExpiredBefore(ctx, cutoff, e.config.CleanupBatchSize)
		if err != nil {
			return total, fmt.Errorf("session cleanup: %w", err)
		}
		total += n
		if n < int64(e.config.CleanupBatchSize) {
			return total, nil
		}
	}
}

func (e *Engine) enforceSessionCap(ctx context.Context, userID uuid.UUID) error {
	active, err := e.repo.ListByUser(ctx, userID, FilterActive)
	if err != nil {
		return fmt.Errorf("session cap check: %w", err)
	}
	over := len(active) - e.config.MaxSessionsPerUser + 1
	if over <= 0 {
		return nil
	}

	// ListByUser returns newest first; trim from the tail.
	for i := 0; i < over; i++ {
		victim := active[len(active)-1-i]
		if _, err := e.repo.Invalidate(ctx, victim.ID, ReasonSessionLimit); err != nil {
			return fmt.Errorf("session cap eviction: %w", err)
		}
	}

	return nil
}

func (e *Engine) rotate(ctx context.Context, sess *Session, now time.Time) (string, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return "", err
	}

	newHash := internal.HashSessionToken(token, e.config.Salt)
	graceUntil := now.Add(e.config.RotationGrace)

	if err := e.repo.Rotate(ctx, sess.ID, newHash, now, graceUntil); err != nil {
		return "", fmt.Errorf("rotate session token: %w", err)
	}

	sess.PreviousTokenHash = sess.TokenHash
	sess.PreviousValidUntil = &graceUntil
	sess.TokenHash = newHash
	sess.TokenRotatedAt = now

	return token, nil
}

func tenantFor(ctx context.Context) (string, error) {
	return repository.TenantID(ctx)
}

// maybeRefreshActivity updates last_activity_at at most once per configured
// interval. The write is fire-and-forget so the hot lookup path is not
// blocked by write amplification.
func (e *Engine) maybeRefreshActivity(ctx context.Context, sess *Session, now time.Time) {
	if now.Sub(sess.LastActivityUpdateAt) < e.config.ActivityUpdateInterval {
		return
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		updateCtx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := e.repo.UpdateActivity(updateCtx, sess.ID, now, now); err != nil {
			e.logger.Warn("session activity refresh failed",
				"session_id", sess.ID, "error", err)
		}
	}()

	sess.LastActivityAt = now
	sess.LastActivityUpdateAt = now
}
