package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
)

func (r *sessionRepo) Create(ctx context.Context, sess *session.Session) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions {
		if existing.UserID == sess.UserID && existing.TokenHash == sess.TokenHash && existing.IsValid {
			return repository.ErrDuplicate
		}
	}

	clone := cloneSession(sess)
	clone.TenantID = tenantID
	r.sessions[clone.ID] = clone
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok || sess.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, hash string) (*session.Session, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		if sess.TenantID != tenantID {
			continue
		}
		if sess.TokenHash == hash || sess.PreviousTokenHash == hash {
			return cloneSession(sess), nil
		}
	}
	return nil, nil
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, filter session.Filter) ([]*session.Session, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*session.Session
	for _, sess := range r.sessions {
		if sess.TenantID != tenantID || sess.UserID != userID {
			continue
		}
		if !matchesFilter(sess, filter) {
			continue
		}
		out = append(out, cloneSession(sess))
	}

	// Newest first, matching the postgres ORDER BY created_at DESC.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *sessionRepo) UpdateActivity(ctx context.Context, id uuid.UUID, activityAt, updateAt time.Time) error {
	return r.mutate(ctx, id, func(s *session.Session) {
		s.LastActivityAt = activityAt
		s.LastActivityUpdateAt = updateAt
	})
}

func (r *sessionRepo) UpdateMFAStatus(ctx context.Context, id uuid.UUID, status session.MFAStatus) error {
	return r.mutate(ctx, id, func(s *session.Session) {
		s.MFAStatus = status
	})
}

func (r *sessionRepo) Rotate(ctx context.Context, id uuid.UUID, newHash string, rotatedAt time.Time, previousValidUntil time.Time) error {
	return r.mutate(ctx, id, func(s *session.Session) {
		s.PreviousTokenHash = s.TokenHash
		until := previousValidUntil
		s.PreviousValidUntil = &until
		s.TokenHash = newHash
		s.TokenRotatedAt = rotatedAt
	})
}

func (r *sessionRepo) Invalidate(ctx context.Context, id uuid.UUID, reason session.Reason) (bool, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok || sess.TenantID != tenantID {
		return false, nil
	}
	if !sess.IsValid {
		return false, nil
	}
	sess.IsValid = false
	sess.InvalidatedReason = reason
	return true, nil
}

func (r *sessionRepo) InvalidateAllByUser(ctx context.Context, userID uuid.UUID, reason session.Reason) (int64, error) {
	return r.bulkInvalidate(ctx, func(s *session.Session) bool {
		return s.UserID == userID
	}, reason)
}

func (r *sessionRepo) InvalidateByIP(ctx context.Context, ip string, reason session.Reason) (int64, error) {
	return r.bulkInvalidate(ctx, func(s *session.Session) bool {
		return s.IPAddress == ip
	}, reason)
}

func (r *sessionRepo) InvalidateByFilter(ctx context.Context, userID uuid.UUID, filter session.Filter, reason session.Reason) (int64, error) {
	return r.bulkInvalidate(ctx, func(s *session.Session) bool {
		return s.UserID == userID && matchesFilter(s, filter)
	}, reason)
}

// DeleteExpiredBefore is cross-tenant maintenance and needs no tenant scope.
func (r *sessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, sess := range r.sessions {
		if purged >= int64(limit) {
			break
		}
		if sess.ExpiresAt.Before(cutoff) {
			delete(r.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (r *sessionRepo) mutate(ctx context.Context, id uuid.UUID, fn func(*session.Session)) error {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok || sess.TenantID != tenantID {
		return repository.ErrNotFound
	}
	if !sess.IsValid {
		// Invalidated sessions are read-only.
		return nil
	}
	fn(sess)
	return nil
}

func (r *sessionRepo) bulkInvalidate(ctx context.Context, match func(*session.Session) bool, reason session.Reason) (int64, error) {
	tenantID, err := repository.TenantID(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, sess := range r.sessions {
		if sess.TenantID != tenantID || !sess.IsValid || !match(sess) {
			continue
		}
		sess.IsValid = false
		sess.InvalidatedReason = reason
		count++
	}
	return count, nil
}

func matchesFilter(s *session.Session, filter session.Filter) bool {
	switch filter {
	case session.FilterActive:
		return s.IsValid
	case session.FilterInactive:
		return !s.IsValid
	default:
		return true
	}
}

func cloneSession(s *session.Session) *session.Session {
	clone := *s
	if s.PreviousValidUntil != nil {
		until := *s.PreviousValidUntil
		clone.PreviousValidUntil = &until
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
