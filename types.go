package authcore

import (
	"time"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
	"github.com/authcore-io/authcore/verification"
)

// Store bundles the repositories the engine drives. Both
// internal/postgres.Store and internal/memory.Store satisfy it.
type Store interface {
	repository.Tx

	Users() repository.UserRepository
	Tenants() repository.TenantRepository
	Credentials() repository.CredentialRepository
	Fingerprints() repository.FingerprintRepository
	Sessions() session.Repository
	Codes() verification.Repository
}

// RegisterInput is the payload for [Engine.Register].
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginInput is the payload for [Engine.Login]. Nonce and RequestedAt are
// optional; when Nonce is set the replay guard enforces single use within the
// configured window. Fingerprint is the device signal captured client-side;
// nil skips the drift check for this login.
type LoginInput struct {
	Email    string
	Password string

	Nonce       string
	RequestedAt time.Time

	DeviceID    string
	Fingerprint *repository.Fingerprint
}

// LoginResult is returned by [Engine.Login] and [Engine.CompleteMFA].
//
// SessionToken is the opaque bearer token; it is handed out exactly once and
// never stored. AccessToken is a signed JWT and is empty while MFARequired is
// true; [Engine.CompleteMFA] issues it once the second factor passes.
type LoginResult struct {
	User         *repository.User
	Session      *session.Session
	SessionToken string
	AccessToken  string
	MFARequired  bool
}

// ValidateResult is returned by [Engine.Validate]. RotatedToken is non-empty
// exactly when this validation rotated the opaque token; the caller must hand
// it to the client and discard the old token.
type ValidateResult struct {
	Session      *session.Session
	RotatedToken string
}
