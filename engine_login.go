package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/security"
	"github.com/authcore-io/authcore/session"
	"github.com/authcore-io/authcore/verification"
)

// fingerprintHistory bounds how many stored fingerprints the drift check
// compares against.
const fingerprintHistory = 10

// Login authenticates an email/password pair and opens a session.
//
// The admission controls run before any credential work: replay guard (when a
// nonce is presented), per-route rate limit, brute-force lockout with its
// progressive delay, then the stuffing detector's challenge. Unknown account,
// wrong password and deactivated account all answer [ErrInvalidCredentials]
// with comparable timing.
//
// When fingerprint drift marks the device as unrecognized the session opens
// in the MFA-pending state: the result carries no access token and
// [Engine.CompleteMFA] must finish the login. The drift is also fed back
// into the stuffing detector; on an already-blocked source it aborts the
// login with [ErrChallengeRequired] instead.
func (e *Engine) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	start := e.now()

	if _, err := repository.TenantID(ctx); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	ip := clientIP(ctx)

	if err := e.admit(ctx, email, ip, input); err != nil {
		return nil, err
	}

	user, err := e.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn the same hashing cost as a real verification so the
			// response time does not reveal that the account is missing.
			e.hasher.DummyVerify(input.Password)
			return nil, e.failedLogin(ctx, start, email, ip, uuid.Nil, "unknown_account")
		}
		return nil, e.mapStoreErr("login", err)
	}

	match, err := e.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, e.internalErr("login", err)
	}
	if !match {
		return nil, e.failedLogin(ctx, start, email, ip, user.ID, "wrong_password")
	}
	if !user.IsActive {
		e.metrics.ObserveLogin("failure", e.now().Sub(start))
		e.emit(ctx, EventLoginFailed, user.ID, uuid.Nil, map[string]string{"reason": "deactivated"})
		return nil, ErrInvalidCredentials
	}

	e.maybeRehash(ctx, user, input.Password)

	mfaNeeded := e.checkFingerprint(ctx, user.ID, input.Fingerprint)

	if err := e.brute.Reset(ctx, email); err != nil {
		e.logger.Warn("brute-force counter reset failed", "error", err)
	}
	if err := e.stuffing.Record(ctx, security.Attempt{IP: ip, ASN: clientASN(ctx), Email: email, Success: true}); err != nil {
		e.logger.Warn("stuffing record failed", "error", err)
	}
	if mfaNeeded {
		if err := e.assessDrift(ctx, user.ID, ip); err != nil {
			return nil, err
		}
	}

	status := session.MFANone
	if mfaNeeded {
		status = session.MFARequired
	}
	opts := session.CreateOptions{
		DeviceID:  input.DeviceID,
		IPAddress: ip,
		UserAgent: userAgent(ctx),
		MFAStatus: status,
	}
	if input.Fingerprint != nil {
		opts.DeviceFingerprint = input.Fingerprint.ID.String()
	}
	// Creation and any session-cap eviction commit together.
	var (
		sess  *session.Session
		token string
	)
	err = e.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		sess, token, err = e.sessions.Create(ctx, user.ID, opts)
		return err
	})
	if err != nil {
		return nil, e.mapStoreErr("login", err)
	}

	now := e.now()
	if err := e.store.Users().RecordLogin(ctx, user.ID, now); err != nil {
		e.logger.Warn("record login timestamp failed", "user_id", user.ID, "error", err)
	}

	result := &LoginResult{
		User:         user,
		Session:      sess,
		SessionToken: token,
		MFARequired:  mfaNeeded,
	}
	if !mfaNeeded {
		access, err := e.tokens.Create(user.ID.String(), user.Email, sess.TenantID)
		if err != nil {
			return nil, e.internalErr("login", err)
		}
		result.AccessToken = access
	}

	e.metrics.SessionsCreated.Inc()
	outcome := "success"
	if mfaNeeded {
		outcome = "mfa_required"
	}
	e.metrics.ObserveLogin(outcome, now.Sub(start))
	e.emit(ctx, EventLoginSucceeded, user.ID, sess.ID, map[string]string{"mfa_required": fmt.Sprint(mfaNeeded)})

	return result, nil
}

// CompleteMFA finishes a login whose session is pending its second factor.
// The caller presents the session token plus a verification code previously
// delivered via [Engine.SendVerificationCode].
func (e *Engine) CompleteMFA(ctx context.Context, sessionToken string, typ verification.Type, code string) (*LoginResult, error) {
	lookup, err := e.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		return nil, e.mapSessionErr("complete mfa", err)
	}
	sess := lookup.Session
	if sess.MFAStatus != session.MFARequired {
		return nil, ErrInvalidToken
	}

	if err := e.codes.Verify(ctx, sess.UserID, typ, code); err != nil {
		e.metrics.CodesVerified.WithLabelValues("failure").Inc()
		return nil, e.mapVerificationErr("complete mfa", err)
	}
	e.metrics.CodesVerified.WithLabelValues("success").Inc()

	if err := e.sessions.UpdateMFAStatus(ctx, sess.ID, session.MFACompleted); err != nil {
		return nil, e.mapStoreErr("complete mfa", err)
	}
	sess.MFAStatus = session.MFACompleted

	user, err := e.store.Users().GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, e.mapStoreErr("complete mfa", err)
	}
	access, err := e.tokens.Create(user.ID.String(), user.Email, sess.TenantID)
	if err != nil {
		return nil, e.internalErr("complete mfa", err)
	}

	e.emit(ctx, EventMFACompleted, user.ID, sess.ID, nil)

	return &LoginResult{
		User:         user,
		Session:      sess,
		SessionToken: lookup.RotatedToken,
		AccessToken:  access,
	}, nil
}

// admit runs the pre-credential controls in order: replay, rate limit,
// brute-force, stuffing. Any store failure fails closed.
func (e *Engine) admit(ctx context.Context, email, ip string, input LoginInput) error {
	if input.Nonce != "" {
		if err := e.replay.Check(ctx, input.Nonce, input.RequestedAt); err != nil {
			return e.mapAdmissionErr("replay", err)
		}
	}

	if err := e.rate.Allow(ctx, "login", email+"|"+ip); err != nil {
		return e.mapAdmissionErr("rate_limit", err)
	}

	verdict, err := e.brute.Check(ctx, email, ip)
	if errors.Is(err, security.ErrLocked) {
		e.metrics.AdmissionRejections.WithLabelValues("lockout").Inc()
		e.emit(ctx, EventLoginLocked, uuid.Nil, uuid.Nil, map[string]string{
			"retry_after": verdict.RetryAfter.String(),
		})
		return &AccountLockedError{RetryAfter: verdict.RetryAfter}
	}
	if err != nil {
		return e.mapAdmissionErr("bruteforce", err)
	}
	if err := sleepFor(ctx, verdict.Delay); err != nil {
		return err
	}

	assessment, err := e.stuffing.Assess(ctx, ip, clientASN(ctx), false)
	if err != nil {
		return e.mapAdmissionErr("stuffing", err)
	}
	switch assessment.Challenge.Kind {
	case security.ChallengeNone:
	case security.ChallengeDelay:
		if err := sleepFor(ctx, assessment.Challenge.Delay); err != nil {
			return err
		}
	default:
		e.metrics.AdmissionRejections.WithLabelValues("stuffing").Inc()
		e.emit(ctx, EventLoginChallenged, uuid.Nil, uuid.Nil, map[string]string{
			"risk":      assessment.Risk.String(),
			"challenge": assessment.Challenge.Kind.String(),
		})
		return &ChallengeError{
			Kind:       assessment.Challenge.Kind.String(),
			RetryAfter: assessment.Challenge.Block,
		}
	}
	return nil
}

// assessDrift feeds a confirmed fingerprint drift back into the stuffing
// detector. The MFA-pending session already enforces the detector's MFA
// recommendation; only an IP block cuts the login short.
func (e *Engine) assessDrift(ctx context.Context, userID uuid.UUID, ip string) error {
	assessment, err := e.stuffing.Assess(ctx, ip, clientASN(ctx), true)
	if err != nil {
		e.logger.Warn("stuffing drift assessment failed", "error", err)
		return nil
	}
	if assessment.Challenge.Kind != security.ChallengeIPBlock {
		return nil
	}

	e.metrics.AdmissionRejections.WithLabelValues("stuffing").Inc()
	e.emit(ctx, EventLoginChallenged, userID, uuid.Nil, map[string]string{
		"risk":      assessment.Risk.String(),
		"challenge": assessment.Challenge.Kind.String(),
	})
	return &ChallengeError{
		Kind:       assessment.Challenge.Kind.String(),
		RetryAfter: assessment.Challenge.Block,
	}
}

// failedLogin books a failed credential check into the counters and answers
// [ErrInvalidCredentials], or [ErrAccountLocked] when this failure tripped
// the lockout.
func (e *Engine) failedLogin(ctx context.Context, start time.Time, email, ip string, userID uuid.UUID, reason string) error {
	locked, err := e.brute.RecordFailure(ctx, email, ip)
	if err != nil {
		e.logger.Warn("brute-force record failed", "error", err)
	}
	if err := e.stuffing.Record(ctx, security.Attempt{IP: ip, ASN: clientASN(ctx), Email: email, Success: false}); err != nil {
		e.logger.Warn("stuffing record failed", "error", err)
	}

	e.metrics.ObserveLogin("failure", e.now().Sub(start))
	e.emit(ctx, EventLoginFailed, userID, uuid.Nil, map[string]string{"reason": reason})

	if locked {
		e.emit(ctx, EventLoginLocked, userID, uuid.Nil, nil)
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// maybeRehash upgrades the stored hash when the configured parameters have
// been strengthened since it was written. Best effort.
func (e *Engine) maybeRehash(ctx context.Context, user *repository.User, password string) {
	needs, err := e.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return
	}
	user.PasswordHash = hash
	if err := e.store.Users().Update(ctx, user); err != nil {
		e.logger.Warn("password rehash persist failed", "user_id", user.ID, "error", err)
	}
}

// checkFingerprint stores the presented fingerprint and reports whether it
// drifted from the user's recent devices. Storage failures only log; the
// login itself never fails on fingerprint plumbing.
func (e *Engine) checkFingerprint(ctx context.Context, userID uuid.UUID, presented *repository.Fingerprint) bool {
	if e.config.DisableFingerprinting || presented == nil {
		return false
	}

	drifted := false
	recent, err := e.store.Fingerprints().ListRecentByUser(ctx, userID, fingerprintHistory)
	if err != nil {
		e.logger.Warn("fingerprint history load failed", "user_id", userID, "error", err)
	} else {
		_, drifted = e.drift.Compare(presented, recent)
	}

	record := *presented
	record.UserID = userID
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := e.store.Fingerprints().Save(ctx, &record); err != nil {
		e.logger.Warn("fingerprint save failed", "user_id", userID, "error", err)
	}
	presented.ID = record.ID

	return drifted
}

// mapAdmissionErr translates security-control errors to the engine surface.
func (e *Engine) mapAdmissionErr(control string, err error) error {
	var rateErr *security.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		e.metrics.AdmissionRejections.WithLabelValues(control).Inc()
		return &RateLimitError{Used: rateErr.Used, Window: rateErr.Window}
	case errors.Is(err, security.ErrReplay):
		e.metrics.AdmissionRejections.WithLabelValues(control).Inc()
		return ErrReplay
	case errors.Is(err, security.ErrStaleRequest):
		e.metrics.AdmissionRejections.WithLabelValues(control).Inc()
		return ErrStaleRequest
	case errors.Is(err, security.ErrUnavailable):
		return ErrServiceUnavailable
	case errors.Is(err, repository.ErrTenant):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return e.internalErr("admission "+control, err)
	}
}
