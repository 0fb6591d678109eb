package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
)

func (r *tenantRepo) Create(ctx context.Context, tenant *repository.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tenants[tenant.ID]; exists {
		return repository.ErrDuplicate
	}
	clone := *tenant
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	r.tenants[tenant.ID] = &clone
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenant, ok := r.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *tenant
	return &clone, nil
}

func (r *tenantRepo) List(ctx context.Context) ([]*repository.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*repository.Tenant, 0, len(r.tenants))
	for _, tenant := range r.tenants {
		clone := *tenant
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *credentialRepo) Save(ctx context.Context, cred *repository.Credential) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.credentials {
		if existing.TenantID == tenantID && existing.CredentialID == cred.CredentialID {
			return repository.ErrDuplicate
		}
	}

	clone := *cred
	clone.TenantID = tenantID
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.credentials[clone.ID] = &clone
	*cred = clone
	return nil
}

func (r *credentialRepo) Update(ctx context.Context, cred *repository.Credential) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.credentials[cred.ID]
	if !ok || existing.TenantID != tenantID {
		return repository.ErrNotFound
	}
	clone := *cred
	clone.TenantID = tenantID
	clone.UpdatedAt = time.Now()
	r.credentials[cred.ID] = &clone
	return nil
}

func (r *credentialRepo) GetByCredentialID(ctx context.Context, credentialID string) (*repository.Credential, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cred := range r.credentials {
		if cred.TenantID == tenantID && cred.CredentialID == credentialID {
			clone := *cred
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *credentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Credential, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.credentials[id]
	if !ok || cred.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	clone := *cred
	return &clone, nil
}

func (r *credentialRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*repository.Credential, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*repository.Credential
	for _, cred := range r.credentials {
		if cred.TenantID == tenantID && cred.UserID == userID {
			clone := *cred
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *credentialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.credentials[id]
	if !ok || cred.TenantID != tenantID {
		return repository.ErrNotFound
	}
	delete(r.credentials, id)
	return nil
}

func (r *credentialRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, cred := range r.credentials {
		if cred.TenantID == tenantID && cred.UserID == userID {
			delete(r.credentials, id)
			count++
		}
	}
	return count, nil
}

func (r *fingerprintRepo) Save(ctx context.Context, fp *repository.Fingerprint) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *fp
	clone.TenantID = tenantID
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.Languages = append([]string(nil), fp.Languages...)
	r.fingerprints = append(r.fingerprints, &clone)
	*fp = clone
	return nil
}

func (r *fingerprintRepo) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*repository.Fingerprint, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*repository.Fingerprint
	for _, fp := range r.fingerprints {
		if fp.TenantID == tenantID && fp.UserID == userID {
			clone := *fp
			clone.Languages = append([]string(nil), fp.Languages...)
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
