package verification

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

var (
	// ErrThrottled means a code was issued for this (user, type) too
	// recently.
	ErrThrottled = errors.New("verification: send throttled")
	// ErrNotFound means no pending code exists for this (user, type).
	ErrNotFound = errors.New("verification: no pending code")
	// ErrExpired means the pending code is past its expiry.
	ErrExpired = errors.New("verification: code expired")
	// ErrTooManyAttempts means the attempt budget is exhausted and the code
	// has been invalidated.
	ErrTooManyAttempts = errors.New("verification: too many attempts")
	// ErrInvalid means the candidate code does not match.
	ErrInvalid = errors.New("verification: invalid code")
	// ErrNoProvider means no message provider is registered for the
	// requested channel.
	ErrNoProvider = errors.New("verification: no provider for channel")
)

const (
	defaultCodeLength = 6
	defaultExpiration = 10 * time.Minute
	defaultThrottle   = 60 * time.Second
	defaultMaxAttempt = 5
	defaultRetention  = 24 * time.Hour
	defaultBatchSize  = 500
)

// Config tunes the verification engine.
type Config struct {
	CodeLength  int
	Expiration  time.Duration
	Throttle    time.Duration
	MaxAttempts int
	Retention   time.Duration
	BatchSize   int
	// Now overrides the engine clock; tests use it to step time.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.CodeLength <= 0 {
		c.CodeLength = defaultCodeLength
	}
	if c.Expiration <= 0 {
		c.Expiration = defaultExpiration
	}
	if c.Throttle <= 0 {
		c.Throttle = defaultThrottle
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempt
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
}

// Engine issues and verifies one-time codes.
type Engine struct {
	repo      Repository
	providers map[Type]MessageProvider
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine returns a ready engine. Providers are keyed by their channel;
// registering two providers for the same channel is an error.
func NewEngine(repo Repository, providers []MessageProvider, cfg Config, logger *slog.Logger) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("verification repository required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	byType := make(map[Type]MessageProvider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		typ := p.VerificationType()
		if _, dup := byType[typ]; dup {
			return nil, fmt.Errorf("duplicate provider for channel %q", typ)
		}
		byType[typ] = p
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		repo:      repo,
		providers: byType,
		config:    cfg,
		logger:    logger,
		now:       now,
	}, nil
}

// GenerateAndSend issues a fresh code for (user, type), superseding any
// pending one, and dispatches it via the matching provider. Returns the
// provider delivery id.
func (e *Engine) GenerateAndSend(ctx context.Context, userID uuid.UUID, typ Type, recipient string) (string, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return "", err
	}

	provider, ok := e.providers[typ]
	if !ok {
		return "", ErrNoProvider
	}

	now := e.now()

	recent, err := e.repo.CountRecentByUser(ctx, userID, typ, now.Add(-e.config.Throttle))
	if err != nil {
		return "", fmt.Errorf("verification throttle check: %w", err)
	}
	if recent >= 1 {
		return "", ErrThrottled
	}

	if _, err := e.repo.InvalidatePending(ctx, userID, typ); err != nil {
		return "", fmt.Errorf("supersede pending codes: %w", err)
	}

	plaintext, err := internal.NewNumericCode(e.config.CodeLength)
	if err != nil {
		return "", err
	}

	code := &Code{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Code:      plaintext,
		Type:      typ,
		Status:    StatusPending,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Expiration),
	}
	if err := e.repo.Save(ctx, code); err != nil {
		return "", fmt.Errorf("save verification code: %w", err)
	}

	deliveryID, err := provider.Send(ctx, Message{
		TenantID:  tenantID,
		UserID:    userID,
		Recipient: recipient,
		Subject:   "Your verification code",
		Body:      fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", plaintext, int(e.config.Expiration.Minutes())),
		Type:      typ,
	})
	if err != nil {
		return "", fmt.Errorf("dispatch verification message: %w", err)
	}

	e.logger.Info("verification code dispatched",
		"tenant_id", tenantID, "user_id", userID, "channel", typ, "delivery_id", deliveryID)

	return deliveryID, nil
}

// Verify checks candidate against the pending code for (user, type).
// Failure modes, in order: no pending record, expiry, attempt budget,
// mismatch. The comparison is constant-time.
func (e *Engine) Verify(ctx context.Context, userID uuid.UUID, typ Type, candidate string) error {
	if _, err := repository.TenantID(ctx); err != nil {
		return err
	}

	code, err := e.repo.GetPending(ctx, userID, typ)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("fetch pending code: %w", err)
	}

	now := e.now()

	if !code.ExpiresAt.After(now) {
		code.Status = StatusExpired
		if err := e.repo.Update(ctx, code); err != nil {
			return fmt.Errorf("expire verification code: %w", err)
		}
		return ErrExpired
	}

	if code.Attempts >= e.config.MaxAttempts {
		code.Status = StatusInvalidated
		if err := e.repo.Update(ctx, code); err != nil {
			return fmt.Errorf("invalidate verification code: %w", err)
		}
		return ErrTooManyAttempts
	}

	code.Attempts++

	if !internal.ConstantTimeEquals(candidate, code.Code) {
		if err := e.repo.Update(ctx, code); err != nil {
			return fmt.Errorf("record verification attempt: %w", err)
		}
		return ErrInvalid
	}

	code.Status = StatusVerified
	if err := e.repo.Update(ctx, code); err != nil {
		return fmt.Errorf("mark code verified: %w", err)
	}

	return nil
}

// Cleanup purges terminal codes older than the retention period in bounded
// batches and returns the total purged.
func (e *Engine) Cleanup(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.config.Retention)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := e.repo.DeleteTerminalBefore(ctx, cutoff, e.config.BatchSize)
		if err != nil {
			return total, fmt.Errorf("verification cleanup: %w", err)
		}
		total += n
		if n < int64(e.config.BatchSize) {
			return total, nil
		}
	}
}
