// Package authcore is a multi-tenant authentication and session-management
// core. It owns credential hashing and verification, server-side sessions
// with opaque rotating tokens, short-lived verification codes, and the
// redis-backed admission controls in front of login.
//
// Build an [Engine] with [NewBuilder]; every operation runs under a tenant
// scope installed with [WithTenant].
package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/internal/jobs"
	"github.com/authcore-io/authcore/internal/metrics"
	"github.com/authcore-io/authcore/jwt"
	"github.com/authcore-io/authcore/password"
	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/security"
	"github.com/authcore-io/authcore/session"
	"github.com/authcore-io/authcore/verification"
)

// admissionLimiter is satisfied by both the redis and the process-local rate
// limiter.
type admissionLimiter interface {
	Allow(ctx context.Context, route, identifier string) error
}

// Engine orchestrates the credential, session, verification and security
// components behind a single API. Construct it with [NewBuilder]; the zero
// value is not usable. Safe for concurrent use.
type Engine struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   Store

	sessions *session.Engine
	codes    *verification.Engine
	hasher   *password.Hasher
	strength *password.Estimator
	tokens   *jwt.Manager

	brute    *security.BruteForceLimiter
	stuffing *security.StuffingDetector
	rate     admissionLimiter
	replay   *security.ReplayGuard
	drift    *security.FingerprintComparator

	audit     *auditDispatcher
	scheduler *jobs.Scheduler
	now       func() time.Time
}

// Close stops the background cleanup jobs and drains the audit queue. The
// engine must not be used after Close.
func (e *Engine) Close() error {
	var err error
	if e.scheduler != nil {
		err = e.scheduler.Shutdown()
	}
	e.audit.Close()
	return err
}

// AuditEventsDropped reports how many audit events were lost to a full
// dispatch buffer since the engine was built.
func (e *Engine) AuditEventsDropped() uint64 {
	return e.audit.Dropped()
}

// emit records an audit event with the request context attached.
func (e *Engine) emit(ctx context.Context, event string, userID, sessionID uuid.UUID, detail map[string]string) {
	tenantID, _ := repository.TenantFromContext(ctx)
	e.audit.emit(AuditEvent{
		Time:      e.now(),
		TenantID:  tenantID,
		Event:     event,
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: clientIP(ctx),
		UserAgent: userAgent(ctx),
		Detail:    detail,
	})
}

// internalErr logs the cause under a fresh correlation id and returns an
// opaque [ErrInternal] carrying only the id.
func (e *Engine) internalErr(op string, err error) error {
	id := uuid.NewString()
	e.logger.Error("internal failure", "op", op, "correlation_id", id, "error", err)
	return fmt.Errorf("%w (correlation_id=%s)", ErrInternal, id)
}

// mapStoreErr translates the repository taxonomy to the engine's error
// surface. Context cancellation and missing tenant scope pass through.
func (e *Engine) mapStoreErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, repository.ErrTenant):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, repository.ErrConnection):
		return ErrServiceUnavailable
	default:
		return e.internalErr(op, err)
	}
}

// mapVerificationErr translates verification-engine errors.
func (e *Engine) mapVerificationErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, verification.ErrThrottled):
		return ErrVerificationThrottled
	case errors.Is(err, verification.ErrExpired):
		return ErrVerificationExpired
	case errors.Is(err, verification.ErrTooManyAttempts):
		return ErrTooManyAttempts
	case errors.Is(err, verification.ErrInvalid):
		return ErrVerificationInvalid
	case errors.Is(err, verification.ErrNotFound):
		return ErrNotFound
	default:
		return e.mapStoreErr(op, err)
	}
}

// sleepFor waits out an admission delay while honoring cancellation.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
