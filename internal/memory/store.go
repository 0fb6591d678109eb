// Package memory provides in-memory repository implementations. They honor
// the same tenant-scope and error-taxonomy contracts as internal/postgres
// and back the engine test suites.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
	"github.com/authcore-io/authcore/verification"
)

// Store is a process-local database. A single mutex guards all tables; the
// implementation favors obviousness over throughput.
type Store struct {
	mu sync.Mutex

	users        map[uuid.UUID]*repository.User
	tenants      map[string]*repository.Tenant
	credentials  map[uuid.UUID]*repository.Credential
	fingerprints []*repository.Fingerprint
	sessions     map[uuid.UUID]*session.Session
	codes        map[uuid.UUID]*verification.Code
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]*repository.User),
		tenants:     make(map[string]*repository.Tenant),
		credentials: make(map[uuid.UUID]*repository.Credential),
		sessions:    make(map[uuid.UUID]*session.Session),
		codes:       make(map[uuid.UUID]*verification.Code),
	}
}

// WithinTx satisfies [repository.Tx]. The in-memory store has no real
// transactions; fn runs under the caller's context unchanged.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }

// Tenants returns the tenant repository view of the store.
func (s *Store) Tenants() repository.TenantRepository { return (*tenantRepo)(s) }

// Credentials returns the credential repository view of the store.
func (s *Store) Credentials() repository.CredentialRepository { return (*credentialRepo)(s) }

// Fingerprints returns the fingerprint repository view of the store.
func (s *Store) Fingerprints() repository.FingerprintRepository { return (*fingerprintRepo)(s) }

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() session.Repository { return (*sessionRepo)(s) }

// Codes returns the verification-code repository view of the store.
func (s *Store) Codes() verification.Repository { return (*codeRepo)(s) }

type userRepo Store
type tenantRepo Store
type credentialRepo Store
type fingerprintRepo Store
type sessionRepo Store
type codeRepo Store
