package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
)

func (r *userRepo) Create(ctx context.Context, user *repository.User) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, existing := range r.users {
		if existing.TenantID == tenantID && strings.ToLower(existing.Email) == email {
			return repository.ErrDuplicate
		}
	}

	clone := *user
	clone.TenantID = tenantID
	clone.Email = email
	if clone.ID == uuid.Nil {
		clone.ID = uuid.New()
	}
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.users[clone.ID] = &clone

	*user = clone
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email = strings.ToLower(email)
	for _, user := range r.users {
		if user.TenantID == tenantID && strings.ToLower(user.Email) == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) Update(ctx context.Context, user *repository.User) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok || existing.TenantID != tenantID {
		return repository.ErrNotFound
	}

	clone := *user
	clone.TenantID = tenantID
	clone.Email = strings.ToLower(user.Email)
	clone.UpdatedAt = time.Now()
	r.users[user.ID] = &clone
	return nil
}

func (r *userRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.mutate(ctx, id, func(u *repository.User) {
		u.IsVerified = true
	})
}

func (r *userRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.mutate(ctx, id, func(u *repository.User) {
		u.IsActive = active
	})
}

func (r *userRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(ctx, id, func(u *repository.User) {
		t := at
		u.LastLoginAt = &t
	})
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.TenantID != tenantID {
		return repository.ErrNotFound
	}
	delete(r.users, id)

	// Cascade like the relational schema does.
	for sid, sess := range r.sessions {
		if sess.UserID == id {
			delete(r.sessions, sid)
		}
	}
	for cid, cred := range r.credentials {
		if cred.UserID == id {
			delete(r.credentials, cid)
		}
	}
	for vid, code := range r.codes {
		if code.UserID == id {
			delete(r.codes, vid)
		}
	}
	kept := r.fingerprints[:0]
	for _, fp := range r.fingerprints {
		if fp.UserID != id {
			kept = append(kept, fp)
		}
	}
	r.fingerprints = kept
	return nil
}

func (r *userRepo) mutate(ctx context.Context, id uuid.UUID, fn func(*repository.User)) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.TenantID != tenantID {
		return repository.ErrNotFound
	}
	fn(user)
	user.UpdatedAt = time.Now()
	return nil
}
