package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the account record partitioned by tenant. Email is unique per
// tenant after case folding.
type User struct {
	ID           uuid.UUID
	TenantID     string
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Credential is a stored public-key credential. CredentialID is the opaque
// authenticator-issued id, url-safe encoded; ID is the internal row id.
type Credential struct {
	ID           uuid.UUID
	CredentialID string
	UserID       uuid.UUID
	TenantID     string
	Name         string
	AAGUID       string
	PublicKey    []byte
	SignCount    uint32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Fingerprint is a stored device fingerprint: a vector of normalized
// features captured at login and compared on subsequent logins.
type Fingerprint struct {
	ID              uuid.UUID
	TenantID        string
	UserID          uuid.UUID
	UserAgentFamily string
	OSFamily        string
	DeviceType      string
	Languages       []string
	Timezone        string
	ScreenBucket    string
	CreatedAt       time.Time
}

// UserRepository is the persistence contract for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TenantRepository is the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
}

// CredentialRepository is the persistence contract for public-key
// credentials.
type CredentialRepository interface {
	Save(ctx context.Context, cred *Credential) error
	Update(ctx context.Context, cred *Credential) error
	GetByCredentialID(ctx context.Context, credentialID string) (*Credential, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Credential, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Credential, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// FingerprintRepository stores device fingerprints for drift comparison.
type FingerprintRepository interface {
	Save(ctx context.Context, fp *Fingerprint) error
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Fingerprint, error)
}

// Tx runs fn inside a transaction. On a nil return the transaction commits;
// on error it rolls back. Nested calls reuse the outer transaction.
type Tx interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
