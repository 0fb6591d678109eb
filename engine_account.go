package authcore

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
)

// Register creates a user in the caller's tenant. The password must clear
// the configured strength threshold; the email must be unique within the
// tenant (case-insensitive).
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*repository.User, error) {
	if _, err := repository.TenantID(ctx); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ok, score := e.strength.Acceptable(input.Password, []string{email, input.DisplayName})
	if !ok {
		return nil, &WeakPasswordError{Score: score, Threshold: e.strength.MinScore()}
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, e.internalErr("register", err)
	}

	user := &repository.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  input.DisplayName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := e.store.Users().Create(ctx, user); err != nil {
		return nil, e.mapStoreErr("register", err)
	}

	e.emit(ctx, EventUserRegistered, user.ID, uuid.Nil, nil)
	return user, nil
}

// ChangePassword verifies the current password, checks the replacement
// against the strength threshold, rehashes, and terminates every other
// session of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID uuid.UUID, current, replacement string) error {
	user, err := e.store.Users().GetByID(ctx, userID)
	if err != nil {
		return e.mapStoreErr("change password", err)
	}

	match, err := e.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return e.internalErr("change password", err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	ok, score := e.strength.Acceptable(replacement, []string{user.Email, user.DisplayName})
	if !ok {
		return &WeakPasswordError{Score: score, Threshold: e.strength.MinScore()}
	}

	hash, err := e.hasher.Hash(replacement)
	if err != nil {
		return e.internalErr("change password", err)
	}

	// The new hash and the session sweep commit together.
	user.PasswordHash = hash
	err = e.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.store.Users().Update(ctx, user); err != nil {
			return err
		}
		_, err := e.sessions.InvalidateAllByUser(ctx, userID, session.ReasonSecurityPolicyChange)
		return err
	})
	if err != nil {
		return e.mapStoreErr("change password", err)
	}

	e.emit(ctx, EventPasswordChanged, userID, uuid.Nil, nil)
	return nil
}

// DeactivateUser disables the account and terminates all of its sessions.
// A deactivated user cannot log in; existing tokens stop validating at once.
func (e *Engine) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	var terminated int64
	err := e.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.store.Users().SetActive(ctx, userID, false); err != nil {
			return err
		}
		var err error
		terminated, err = e.sessions.InvalidateAllByUser(ctx, userID, session.ReasonAdminAction)
		return err
	})
	if err != nil {
		return e.mapStoreErr("deactivate user", err)
	}

	e.emit(ctx, EventUserDeactivated, userID, uuid.Nil, map[string]string{
		"sessions_terminated": fmt.Sprint(terminated),
	})
	return nil
}

// ReactivateUser re-enables a deactivated account. Sessions terminated at
// deactivation stay terminated.
func (e *Engine) ReactivateUser(ctx context.Context, userID uuid.UUID) error {
	if err := e.store.Users().SetActive(ctx, userID, true); err != nil {
		return e.mapStoreErr("reactivate user", err)
	}
	e.emit(ctx, EventUserReactivated, userID, uuid.Nil, nil)
	return nil
}

// GetUser fetches a user in the caller's tenant.
func (e *Engine) GetUser(ctx context.Context, userID uuid.UUID) (*repository.User, error) {
	user, err := e.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, e.mapStoreErr("get user", err)
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("empty email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("malformed email")
	}
	return email, nil
}
