package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
)

// RegisterCredential stores a public-key credential for a user. The
// authenticator-issued credential id must be unique within the tenant.
func (e *Engine) RegisterCredential(ctx context.Context, cred *repository.Credential) error {
	if cred == nil || cred.CredentialID == "" || len(cred.PublicKey) == 0 {
		return errors.New("authcore: credential id and public key required")
	}
	if err := e.store.Credentials().Save(ctx, cred); err != nil {
		return e.mapStoreErr("register credential", err)
	}
	return nil
}

// ObserveCredentialAssertion records the signature counter from a verified
// assertion. A counter at or below the stored value means a second physical
// device holds the same key material: the user's sessions are terminated and
// the caller gets [ErrCredentialCloned].
//
// Authenticators that never increment (counter fixed at zero) are exempt.
func (e *Engine) ObserveCredentialAssertion(ctx context.Context, credentialID string, signCount uint32) error {
	cred, err := e.store.Credentials().GetByCredentialID(ctx, credentialID)
	if err != nil {
		return e.mapStoreErr("observe credential assertion", err)
	}

	if cred.SignCount > 0 && signCount <= cred.SignCount {
		terminated, sweepErr := e.sessions.InvalidateAllByUser(ctx, cred.UserID, session.ReasonSecurityBreach)
		if sweepErr != nil {
			e.logger.Error("session sweep after clone detection failed",
				"user_id", cred.UserID, "error", sweepErr)
		}
		e.metrics.SessionsInvalidated.WithLabelValues(string(session.ReasonSecurityBreach)).Add(float64(terminated))
		e.emit(ctx, EventCredentialCloned, cred.UserID, uuid.Nil, map[string]string{
			"credential_id":       credentialID,
			"stored_count":        fmt.Sprint(cred.SignCount),
			"presented_count":     fmt.Sprint(signCount),
			"sessions_terminated": fmt.Sprint(terminated),
		})
		return ErrCredentialCloned
	}

	cred.SignCount = signCount
	if err := e.store.Credentials().Update(ctx, cred); err != nil {
		return e.mapStoreErr("observe credential assertion", err)
	}
	return nil
}

// ListCredentials returns a user's stored credentials.
func (e *Engine) ListCredentials(ctx context.Context, userID uuid.UUID) ([]*repository.Credential, error) {
	creds, err := e.store.Credentials().ListByUser(ctx, userID)
	if err != nil {
		return nil, e.mapStoreErr("list credentials", err)
	}
	return creds, nil
}

// DeleteCredential removes one stored credential.
func (e *Engine) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	if err := e.store.Credentials().Delete(ctx, id); err != nil {
		return e.mapStoreErr("delete credential", err)
	}
	return nil
}
