package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MFAStatus tracks the second-factor position of a session.
type MFAStatus string

const (
	// MFANone means no second factor is required for this session.
	MFANone MFAStatus = "none"
	// MFARequired means the session is pending second-factor completion
	// and must be treated as unauthenticated for protected operations.
	MFARequired MFAStatus = "required"
	// MFACompleted means the second factor has been verified.
	MFACompleted MFAStatus = "completed"
)

// Reason tags why a session was invalidated.
type Reason string

const (
	ReasonUserLogout           Reason = "user_logout"
	ReasonAdminAction          Reason = "admin_action"
	ReasonTokenExpired         Reason = "token_expired"
	ReasonSessionLimit         Reason = "session_limit"
	ReasonSecurityBreach       Reason = "security_breach"
	ReasonSuspiciousLocation   Reason = "suspicious_location"
	ReasonSecurityPolicyChange Reason = "security_policy_change"
	ReasonEmergencyTermination Reason = "emergency_termination"
)

// Filter selects sessions for bulk operations and listings.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterInactive Filter = "inactive"
)

// Session is the server-side session record. TokenHash is the salted hash of
// the opaque bearer token; the token itself is never persisted.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	TenantID string

	TokenHash         string
	PreviousTokenHash string
	// PreviousValidUntil bounds the rotation grace window during which the
	// previous token hash is still accepted.
	PreviousValidUntil *time.Time

	ExpiresAt            time.Time
	CreatedAt            time.Time
	LastActivityAt       time.Time
	LastActivityUpdateAt time.Time
	TokenRotatedAt       time.Time

	DeviceID          string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	Metadata          map[string]string

	IsValid           bool
	InvalidatedReason Reason
	MFAStatus         MFAStatus
}

// Active reports whether the session is valid and unexpired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.IsValid && s.ExpiresAt.After(now)
}

// Repository is the persistence contract the engine drives. Implementations
// map failures onto the repository error taxonomy and linearize writes on a
// single session via row-level locking.
type Repository interface {
	Create(ctx context.Context, sess *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// FindByTokenHash matches either the current or the previous token
	// hash; the caller distinguishes the two by comparing fields.
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter Filter) ([]*Session, error)
	UpdateActivity(ctx context.Context, id uuid.UUID, activityAt, updateAt time.Time) error
	UpdateMFAStatus(ctx context.Context, id uuid.UUID, status MFAStatus) error
	// Rotate swaps the token hash, retaining the old one for the grace
	// window, and stamps the rotation time.
	Rotate(ctx context.Context, id uuid.UUID, newHash string, rotatedAt time.Time, previousValidUntil time.Time) error
	// Invalidate marks a single session invalid; it reports false when the
	// session was already invalid (first writer wins).
	Invalidate(ctx context.Context, id uuid.UUID, reason Reason) (bool, error)
	InvalidateAllByUser(ctx context.Context, userID uuid.UUID, reason Reason) (int64, error)
	InvalidateByIP(ctx context.Context, ip string, reason Reason) (int64, error)
	InvalidateByFilter(ctx context.Context, userID uuid.UUID, filter Filter, reason Reason) (int64, error)
	// DeleteExpiredBefore purges up to limit sessions whose expiry is older
	// than cutoff. Safe to run concurrently across processes.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
