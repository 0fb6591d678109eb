package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/jwt"
	"github.com/authcore-io/authcore/session"
)

// Validate resolves an opaque session token. A session that is still pending
// its second factor answers [ErrMFAPending]; an invalidated session answers a
// [SessionInvalidatedError]; unknown tokens answer [ErrInvalidToken]. The
// result may carry a rotated token the caller must hand to the client.
func (e *Engine) Validate(ctx context.Context, sessionToken string) (*ValidateResult, error) {
	lookup, err := e.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		return nil, e.mapSessionErr("validate", err)
	}
	if lookup.Session.MFAStatus == session.MFARequired {
		return nil, ErrMFAPending
	}
	return &ValidateResult{
		Session:      lookup.Session,
		RotatedToken: lookup.RotatedToken,
	}, nil
}

// ValidateAccessToken verifies a signed access token and returns its claims.
func (e *Engine) ValidateAccessToken(tokenStr string) (*jwt.Claims, error) {
	claims, err := e.tokens.Parse(tokenStr)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrInvalidToken
	}
}

// Logout terminates the session behind the presented token. Idempotent: an
// unknown or already-terminated token is not an error.
func (e *Engine) Logout(ctx context.Context, sessionToken string) error {
	lookup, err := e.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalid) {
			return nil
		}
		return e.mapSessionErr("logout", err)
	}

	terminated, err := e.sessions.Invalidate(ctx, lookup.Session.ID, session.ReasonUserLogout)
	if err != nil {
		return e.mapStoreErr("logout", err)
	}
	if terminated {
		e.metrics.SessionsInvalidated.WithLabelValues(string(session.ReasonUserLogout)).Inc()
		e.emit(ctx, EventLogout, lookup.Session.UserID, lookup.Session.ID, nil)
	}
	return nil
}

// ListSessions returns a user's sessions selected by filter, newest first.
func (e *Engine) ListSessions(ctx context.Context, userID uuid.UUID, filter session.Filter) ([]*session.Session, error) {
	sessions, err := e.sessions.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, e.mapStoreErr("list sessions", err)
	}
	return sessions, nil
}

// ForceTerminateSession terminates one session by id and reports whether it
// was still valid.
func (e *Engine) ForceTerminateSession(ctx context.Context, sessionID uuid.UUID, reason session.Reason) (bool, error) {
	terminated, err := e.sessions.Invalidate(ctx, sessionID, reason)
	if err != nil {
		return false, e.mapStoreErr("force terminate session", err)
	}
	if terminated {
		e.recordTermination(ctx, reason, uuid.Nil, sessionID, 1)
	}
	return terminated, nil
}

// ForceTerminateUser terminates every valid session of a user and returns the
// count.
func (e *Engine) ForceTerminateUser(ctx context.Context, userID uuid.UUID, reason session.Reason) (int64, error) {
	count, err := e.sessions.InvalidateAllByUser(ctx, userID, reason)
	if err != nil {
		return 0, e.mapStoreErr("force terminate user", err)
	}
	e.recordTermination(ctx, reason, userID, uuid.Nil, count)
	return count, nil
}

// ForceTerminateIP terminates every valid session created from the given
// address, across all users of the tenant, and returns the count.
func (e *Engine) ForceTerminateIP(ctx context.Context, ip string, reason session.Reason) (int64, error) {
	count, err := e.sessions.InvalidateByIP(ctx, ip, reason)
	if err != nil {
		return 0, e.mapStoreErr("force terminate ip", err)
	}
	e.recordTermination(ctx, reason, uuid.Nil, uuid.Nil, count)
	return count, nil
}

// ForceTerminateFiltered terminates a user's sessions selected by filter and
// returns the count.
func (e *Engine) ForceTerminateFiltered(ctx context.Context, userID uuid.UUID, filter session.Filter, reason session.Reason) (int64, error) {
	count, err := e.sessions.InvalidateByFilter(ctx, userID, filter, reason)
	if err != nil {
		return 0, e.mapStoreErr("force terminate filtered", err)
	}
	e.recordTermination(ctx, reason, userID, uuid.Nil, count)
	return count, nil
}

// CleanupSessions purges sessions past the retention period. The background
// scheduler calls this; it is exported for embedders that run their own.
func (e *Engine) CleanupSessions(ctx context.Context) (int64, error) {
	return e.sessions.Cleanup(ctx)
}

func (e *Engine) recordTermination(ctx context.Context, reason session.Reason, userID, sessionID uuid.UUID, count int64) {
	if count <= 0 {
		return
	}
	e.metrics.SessionsInvalidated.WithLabelValues(string(reason)).Add(float64(count))
	e.emit(ctx, EventSessionTerminated, userID, sessionID, map[string]string{
		"reason": string(reason),
		"count":  fmt.Sprint(count),
	})
}

// mapSessionErr translates session-engine lookup errors.
func (e *Engine) mapSessionErr(op string, err error) error {
	var invalidated *session.InvalidatedError
	switch {
	case errors.As(err, &invalidated):
		if invalidated.Reason == session.ReasonTokenExpired {
			return ErrTokenExpired
		}
		return &SessionInvalidatedError{Reason: invalidated.Reason}
	case errors.Is(err, session.ErrInvalid):
		return ErrInvalidToken
	default:
		return e.mapStoreErr(op, err)
	}
}
