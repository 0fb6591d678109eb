package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/verification"
)

const codeColumns = `id, tenant_id, user_id, code, type, status, attempts, created_at, expires_at`

func (r *CodeRepo) Save(ctx context.Context, code *verification.Code) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_codes (id, tenant_id, user_id, code, type, status, attempts, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = (*Store)(r).q(ctx).Exec(ctx, query,
		code.ID, tenantID, code.UserID, code.Code, string(code.Type),
		string(code.Status), code.Attempts, code.CreatedAt, code.ExpiresAt,
	)
	if err != nil {
		return mapError(err)
	}
	code.TenantID = tenantID
	return nil
}

func (r *CodeRepo) GetByID(ctx context.Context, id uuid.UUID) (*verification.Code, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + codeColumns + `
		FROM verification_codes
		WHERE tenant_id = $1 AND id = $2
	`
	return scanCode((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, id))
}

// GetPending locks the pending row so concurrent verifies of the same code
// serialize on the attempts counter.
func (r *CodeRepo) GetPending(ctx context.Context, userID uuid.UUID, typ verification.Type) (*verification.Code, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + codeColumns + `
		FROM verification_codes
		WHERE tenant_id = $1 AND user_id = $2 AND type = $3 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`
	return scanCode((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, userID, string(typ)))
}

func (r *CodeRepo) ListPending(ctx context.Context, userID uuid.UUID) ([]*verification.Code, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + codeColumns + `
		FROM verification_codes
		WHERE tenant_id = $1 AND user_id = $2 AND status = 'pending'
		ORDER BY created_at DESC
	`
	rows, err := (*Store)(r).q(ctx).Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var codes []*verification.Code
	for rows.Next() {
		code, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, mapError(rows.Err())
}

func (r *CodeRepo) Update(ctx context.Context, code *verification.Code) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE verification_codes
		SET status = $3, attempts = $4
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, code.ID, string(code.Status), code.Attempts)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CodeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `DELETE FROM verification_codes WHERE tenant_id = $1 AND id = $2`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CodeRepo) InvalidatePending(ctx context.Context, userID uuid.UUID, typ verification.Type) (int64, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE verification_codes
		SET status = 'invalidated'
		WHERE tenant_id = $1 AND user_id = $2 AND type = $3 AND status = 'pending'
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, userID, string(typ))
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *CodeRepo) CountRecentByUser(ctx context.Context, userID uuid.UUID, typ verification.Type, since time.Time) (int, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE tenant_id = $1 AND user_id = $2 AND type = $3 AND created_at >= $4
	`
	var count int
	err = (*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, userID, string(typ), since).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// DeleteTerminalBefore is cross-tenant maintenance. SKIP LOCKED keeps
// concurrent cleanup runs from serializing on the same batch.
func (r *CodeRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM verification_codes
		WHERE id IN (
			SELECT id FROM verification_codes
			WHERE status IN ('expired', 'invalidated') AND created_at < $1
			ORDER BY created_at
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

func scanCode(row rowScanner) (*verification.Code, error) {
	code := &verification.Code{}
	var typ, status string
	err := row.Scan(
		&code.ID, &code.TenantID, &code.UserID, &code.Code, &typ,
		&status, &code.Attempts, &code.CreatedAt, &code.ExpiresAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	code.Type = verification.Type(typ)
	code.Status = verification.Status(status)
	return code, nil
}

var _ verification.Repository = (*CodeRepo)(nil)
