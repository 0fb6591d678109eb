package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
)

func (r *tenantRepo) Create(ctx context.Context, tenant *repository.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, is_active, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`
	err := (*Store)(r).q(ctx).QueryRow(ctx, query, tenant.ID, tenant.Name, tenant.IsActive).Scan(&tenant.CreatedAt)
	return mapError(err)
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	tenant := &repository.Tenant{}
	query := `
		SELECT id, name, is_active, created_at
		FROM tenants
		WHERE id = $1
	`
	err := (*Store)(r).q(ctx).QueryRow(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.IsActive, &tenant.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return tenant, nil
}

func (r *tenantRepo) List(ctx context.Context) ([]*repository.Tenant, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM tenants
		ORDER BY id
	`
	rows, err := (*Store)(r).q(ctx).Query(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var tenants []*repository.Tenant
	for rows.Next() {
		tenant := &repository.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.IsActive, &tenant.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, mapError(rows.Err())
}

const credentialColumns = `id, credential_id, user_id, tenant_id, name, aaguid, public_key, sign_count, created_at, updated_at`

func (r *credentialRepo) Save(ctx context.Context, cred *repository.Credential) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	query := `
		INSERT INTO credentials (id, credential_id, user_id, tenant_id, name, aaguid, public_key, sign_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = (*Store)(r).q(ctx).QueryRow(ctx, query,
		cred.ID, cred.CredentialID, cred.UserID, tenantID, cred.Name,
		cred.AAGUID, cred.PublicKey, cred.SignCount,
	).Scan(&cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	cred.TenantID = tenantID
	return nil
}

func (r *credentialRepo) Update(ctx context.Context, cred *repository.Credential) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE credentials
		SET name = $3, sign_count = $4, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, cred.ID, cred.Name, cred.SignCount)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *credentialRepo) GetByCredentialID(ctx context.Context, credentialID string) (*repository.Credential, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE tenant_id = $1 AND credential_id = $2
	`
	return scanCredential((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, credentialID))
}

func (r *credentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Credential, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE tenant_id = $1 AND id = $2
	`
	return scanCredential((*Store)(r).q(ctx).QueryRow(ctx, query, tenantID, id))
}

func (r *credentialRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*repository.Credential, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at
	`
	rows, err := (*Store)(r).q(ctx).Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var creds []*repository.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, mapError(rows.Err())
}

func (r *credentialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	query := `DELETE FROM credentials WHERE tenant_id = $1 AND id = $2`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *credentialRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	query := `DELETE FROM credentials WHERE tenant_id = $1 AND user_id = $2`
	tag, err := (*Store)(r).q(ctx).Exec(ctx, query, tenantID, userID)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func scanCredential(row rowScanner) (*repository.Credential, error) {
	cred := &repository.Credential{}
	err := row.Scan(
		&cred.ID, &cred.CredentialID, &cred.UserID, &cred.TenantID, &cred.Name,
		&cred.AAGUID, &cred.PublicKey, &cred.SignCount, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return cred, nil
}

func (r *fingerprintRepo) Save(ctx context.Context, fp *repository.Fingerprint) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	if fp.ID == uuid.Nil {
		fp.ID = uuid.New()
	}
	query := `
		INSERT INTO fingerprints (id, tenant_id, user_id, user_agent_family, os_family, device_type, languages, timezone, screen_bucket, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err = (*Store)(r).q(ctx).QueryRow(ctx, query,
		fp.ID, tenantID, fp.UserID, fp.UserAgentFamily, fp.OSFamily,
		fp.DeviceType, fp.Languages, fp.Timezone, fp.ScreenBucket,
	).Scan(&fp.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	fp.TenantID = tenantID
	return nil
}

func (r *fingerprintRepo) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*repository.Fingerprint, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, user_id, user_agent_family, os_family, device_type, languages, timezone, screen_bucket, created_at
		FROM fingerprints
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := (*Store)(r).q(ctx).Query(ctx, query, tenantID, userID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var fps []*repository.Fingerprint
	for rows.Next() {
		fp := &repository.Fingerprint{}
		err := rows.Scan(
			&fp.ID, &fp.TenantID, &fp.UserID, &fp.UserAgentFamily, &fp.OSFamily,
			&fp.DeviceType, &fp.Languages, &fp.Timezone, &fp.ScreenBucket, &fp.CreatedAt,
		)
		if err != nil {
			return nil, mapError(err)
		}
		fps = append(fps, fp)
	}
	return fps, mapError(rows.Err())
}
