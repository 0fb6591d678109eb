package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/verification"
)

func (r *codeRepo) Save(ctx context.Context, code *verification.Code) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if code.Status == verification.StatusPending {
		for _, existing := range r.codes {
			if existing.UserID == code.UserID && existing.Type == code.Type &&
				existing.Status == verification.StatusPending && existing.ID != code.ID {
				return repository.ErrDuplicate
			}
		}
	}

	clone := *code
	clone.TenantID = tenantID
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	r.codes[clone.ID] = &clone
	*code = clone
	return nil
}

func (r *codeRepo) GetByID(ctx context.Context, id uuid.UUID) (*verification.Code, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[id]
	if !ok || code.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	clone := *code
	return &clone, nil
}

func (r *codeRepo) GetPending(ctx context.Context, userID uuid.UUID, typ verification.Type) (*verification.Code, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, code := range r.codes {
		if code.TenantID == tenantID && code.UserID == userID &&
			code.Type == typ && code.Status == verification.StatusPending {
			clone := *code
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *codeRepo) ListPending(ctx context.Context, userID uuid.UUID) ([]*verification.Code, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*verification.Code
	for _, code := range r.codes {
		if code.TenantID == tenantID && code.UserID == userID && code.Status == verification.StatusPending {
			clone := *code
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *codeRepo) Update(ctx context.Context, code *verification.Code) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.codes[code.ID]
	if !ok || existing.TenantID != tenantID {
		return repository.ErrNotFound
	}

	clone := *code
	clone.TenantID = tenantID
	r.codes[code.ID] = &clone
	return nil
}

func (r *codeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[id]
	if !ok || code.TenantID != tenantID {
		return repository.ErrNotFound
	}
	delete(r.codes, id)
	return nil
}

func (r *codeRepo) InvalidatePending(ctx context.Context, userID uuid.UUID, typ verification.Type) (int64, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, code := range r.codes {
		if code.TenantID == tenantID && code.UserID == userID &&
			code.Type == typ && code.Status == verification.StatusPending {
			code.Status = verification.StatusInvalidated
			count++
		}
	}
	return count, nil
}

func (r *codeRepo) CountRecentByUser(ctx context.Context, userID uuid.UUID, typ verification.Type, since time.Time) (int, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, code := range r.codes {
		if code.TenantID == tenantID && code.UserID == userID &&
			code.Type == typ && !code.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// DeleteTerminalBefore is cross-tenant maintenance and needs no tenant scope.
func (r *codeRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, code := range r.codes {
		if purged >= int64(limit) {
			break
		}
		terminal := code.Status == verification.StatusExpired || code.Status == verification.StatusInvalidated
		if terminal && code.CreatedAt.Before(cutoff) {
			delete(r.codes, id)
			purged++
		}
	}
	return purged, nil
}
