package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
)

const sessionColumns = `id, tenant_id, user_id, token_hash, previous_token_hash, previous_valid_until,
		expires_at, created_at, last_activity_at, last_activity_update_at, token_rotated_at,
		device_id, device_fingerprint, ip_address, user_agent, metadata,
		is_valid, invalidated_reason, mfa_status`

func (r *SessionRepo) Create(ctx context.Context, sess *session.Session) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (id, tenant_id, user_id, token_hash, previous_token_hash, previous_valid_until,
			expires_at, created_at, last_activity_at, last_activity_update_at, token_rotated_at,
			device_id, device_fingerprint, ip_address, user_agent, metadata,
			is_valid, invalidated_reason, mfa_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = (*Store)(r).q(ctx).Exec(ctx, query,
		sess.ID, tenantID, sess.UserID, sess.TokenHash, sess.PreviousTokenHash, sess.PreviousValidUntil,
		sess.ExpiresAt, sess.CreatedAt, sess.LastActivityAt, sess.LastActivityUpdateAt, sess.TokenRotatedAt,
		sess.DeviceID, sess.DeviceFingerprint, sess.IPAddress, sess.UserAgent, sess.Metadata,
		sess.IsValid, string(sess.InvalidatedReason), string(sess.MFAStatus),
	)
	if err != nil {
		return mapError(err)
	}
	sess.TenantID = tenantID
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tenant_id = $1 AND id = $2
	`
	return scanSession((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, id))
}

func (r *SessionRepo) FindByTokenHash(ctx context.Context, hash string) (*session.Session, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tenant_id = $1 AND (token_hash = $2 OR previous_token_hash = $2)
	`
	sess, err := scanSession((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, hash))
	if errors.Is(err, repository.ErrNotFound) {
		// An unknown token is a normal miss, not a repository failure.
		return nil, nil
	}
	return sess, err
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, filter session.Filter) ([]*session.Session, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tenant_id = $1 AND user_id = $2` + filterClause(filter) + `
		ORDER BY created_at DESC
	`
	rows, err := (*Store)(r).q(ctx).Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, mapError(rows.Err())
}

func (r *SessionRepo) UpdateActivity(ctx context.Context, id uuid.UUID, activityAt, updateAt time.Time) error {
	query := `
		UPDATE sessions
		SET last_activity_at = $3, last_activity_update_at = $4
		WHERE tenant_id = $1 AND id = $2 AND is_valid
	`
	return r.mutate(ctx, id, query, activityAt, updateAt)
}

func (r *SessionRepo) UpdateMFAStatus(ctx context.Context, id uuid.UUID, status session.MFAStatus) error {
	query := `
		UPDATE sessions
		SET mfa_status = $3
		WHERE tenant_id = $1 AND id = $2 AND is_valid
	`
	return r.mutate(ctx, id, query, string(status))
}

func (r *SessionRepo) Rotate(ctx context.Context, id uuid.UUID, newHash string, rotatedAt time.Time, previousValidUntil time.Time) error {
	query := `
		UPDATE sessions
		SET previous_token_hash = token_hash, previous_valid_until = $4, token_hash = $3, token_rotated_at = $5
		WHERE tenant_id = $1 AND id = $2 AND is_valid
	`
	return r.mutate(ctx, id, query, newHash, previousValidUntil, rotatedAt)
}

func (r *SessionRepo) Invalidate(ctx context.Context, id uuid.UUID, reason session.Reason) (bool, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return false, err
	}

	// is_valid in the predicate makes the first writer win; later callers
	// match zero rows.
	query := `
		UPDATE sessions
		SET is_valid = FALSE, invalidated_reason = $3
		WHERE tenant_id = $1 AND id = $2 AND is_valid
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, id, string(reason))
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepo) InvalidateAllByUser(ctx context.Context, userID uuid.UUID, reason session.Reason) (int64, error) {
	query := `
		UPDATE sessions
		SET is_valid = FALSE, invalidated_reason = $3
		WHERE tenant_id = $1 AND user_id = $2 AND is_valid
	`
	return r.bulkInvalidate(ctx, query, userID, reason)
}

func (r *SessionRepo) InvalidateByIP(ctx context.Context, ip string, reason session.Reason) (int64, error) {
	query := `
		UPDATE sessions
		SET is_valid = FALSE, invalidated_reason = $3
		WHERE tenant_id = $1 AND ip_address = $2 AND is_valid
	`
	return r.bulkInvalidate(ctx, query, ip, reason)
}

func (r *SessionRepo) InvalidateByFilter(ctx context.Context, userID uuid.UUID, filter session.Filter, reason session.Reason) (int64, error) {
	query := `
		UPDATE sessions
		SET is_valid = FALSE, invalidated_reason = $3
		WHERE tenant_id = $1 AND user_id = $2 AND is_valid` + filterClause(filter) + `
	`
	return r.bulkInvalidate(ctx, query, userID, reason)
}

// DeleteExpiredBefore is cross-tenant maintenance. SKIP LOCKED keeps
// concurrent cleanup runs from serializing on the same batch.
func (r *SessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE id IN (
			SELECT id FROM sessions
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// mutate runs an UPDATE guarded by is_valid. A zero-row result on an
// existing session means it is already invalid, which is a no-op; a missing
// session is ErrNotFound.
func (r *SessionRepo) mutate(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, append([]any{tenantID, id}, args...)...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = (*Store)(r).q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE tenant_id = $1 AND id = $2)`,
		tenantID, id,
	).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) bulkInvalidate(ctx context.Context, query string, selector any, reason session.Reason) (int64, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, selector, string(reason))
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func filterClause(filter session.Filter) string {
	switch filter {
	case session.FilterActive:
		return ` AND is_valid`
	case session.FilterInactive:
		return ` AND NOT is_valid`
	default:
		return ``
	}
}

func scanSession(row rowScanner) (*session.Session, error) {
	sess := &session.Session{}
	var reason, mfa string
	err := row.Scan(
		&sess.ID, &sess.TenantID, &sess.UserID, &sess.TokenHash, &sess.PreviousTokenHash, &sess.PreviousValidUntil,
		&sess.ExpiresAt, &sess.CreatedAt, &sess.LastActivityAt, &sess.LastActivityUpdateAt, &sess.TokenRotatedAt,
		&sess.DeviceID, &sess.DeviceFingerprint, &sess.IPAddress, &sess.UserAgent, &sess.Metadata,
		&sess.IsValid, &reason, &mfa,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapError(err)
	}
	sess.InvalidatedReason = session.Reason(reason)
	sess.MFAStatus = session.MFAStatus(mfa)
	return sess, nil
}

var _ session.Repository = (*SessionRepo)(nil)
