package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
)

const userColumns = `id, tenant_id, email, display_name, password_hash, is_active, is_verified, created_at, updated_at, last_login_at`

func (r *userRepo) Create(ctx context.Context, user *repository.User) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, tenant_id, email, display_name, password_hash, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = (*Store)(r).q(ctx).QueryRow(ctx, query,
		user.ID, tenantID, user.Email, user.DisplayName, user.PasswordHash,
		user.IsActive, user.IsVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	user.TenantID = tenantID
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE tenant_id = $1 AND id = $2
	`
	return scanUser((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE tenant_id = $1 AND lower(email) = lower($2)
	`
	return scanUser((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, email))
}

func (r *userRepo) Update(ctx context.Context, user *repository.User) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET email = $3, display_name = $4, password_hash = $5, is_active = $6, is_verified = $7, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query,
		tenantID, user.ID, user.Email, user.DisplayName, user.PasswordHash,
		user.IsActive, user.IsVerified,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, id, `is_verified = TRUE`)
}

func (r *userRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if active {
		return r.setFlag(ctx, id, `is_active = TRUE`)
	}
	return r.setFlag(ctx, id, `is_active = FALSE`)
}

func (r *userRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET last_login_at = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, id, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	// Sessions, codes, credentials and fingerprints go with the user via
	// ON DELETE CASCADE.
	query := `DELETE FROM users WHERE tenant_id = $1 AND id = $2`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) setFlag(ctx context.Context, id uuid.UUID, assignment string) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET ` + assignment + `, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*repository.User, error) {
	user := &repository.User{}
	err := row.Scan(
		&user.ID, &user.TenantID, &user.Email, &user.DisplayName,
		&user.PasswordHash, &user.IsActive, &user.IsVerified,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}
