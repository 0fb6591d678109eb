package repository

import "errors"

// Error taxonomy for persistence. Implementations map backend-specific
// failures onto exactly one of these; services translate them to domain
// errors at the boundary and never leak driver errors upward.
var (
	// ErrNotFound indicates the requested row does not exist in the
	// caller's tenant scope.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique-constraint violation.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrValidation indicates the entity failed a database-side check.
	ErrValidation = errors.New("repository: validation failed")
	// ErrConnection indicates the backend could not be reached.
	ErrConnection = errors.New("repository: connection failed")
	// ErrTransaction indicates a commit or rollback failure.
	ErrTransaction = errors.New("repository: transaction failed")
	// ErrTenant indicates a call executed without a tenant scope.
	ErrTenant = errors.New("repository: missing tenant scope")
	// ErrSerialization indicates a serialization conflict; callers may retry.
	ErrSerialization = errors.New("repository: serialization conflict")
	// ErrDatabase is the catch-all for other backend errors.
	ErrDatabase = errors.New("repository: database error")
)
