package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type is the delivery channel of a code.
type Type string

const (
	TypeEmail Type = "email"
	TypeSMS   Type = "sms"
)

// Status is the lifecycle state of a code. Transitions are monotonic:
// Pending moves to exactly one of the terminal states and never back.
type Status string

const (
	StatusPending     Status = "pending"
	StatusVerified    Status = "verified"
	StatusExpired     Status = "expired"
	StatusInvalidated Status = "invalidated"
)

// Code is a one-time verification code record.
type Code struct {
	ID        uuid.UUID
	TenantID  string
	UserID    uuid.UUID
	Code      string
	Type      Type
	Status    Status
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Repository is the persistence contract for verification codes.
type Repository interface {
	Save(ctx context.Context, code *Code) error
	GetByID(ctx context.Context, id uuid.UUID) (*Code, error)
	// GetPending returns the single pending code for (user, type), or
	// repository.ErrNotFound.
	GetPending(ctx context.Context, userID uuid.UUID, typ Type) (*Code, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]*Code, error)
	Update(ctx context.Context, code *Code) error
	Delete(ctx context.Context, id uuid.UUID) error
	// InvalidatePending flips any pending codes for (user, type) to
	// Invalidated and returns the count.
	InvalidatePending(ctx context.Context, userID uuid.UUID, typ Type) (int64, error)
	// CountRecentByUser counts codes issued for (user, type) since the
	// cutoff, regardless of status. Drives send throttling.
	CountRecentByUser(ctx context.Context, userID uuid.UUID, typ Type, since time.Time) (int, error)
	// DeleteTerminalBefore purges Expired and Invalidated codes created
	// before cutoff and returns the count.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
