package authcore

import (
	"context"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/verification"
)

// SendVerificationCode issues a one-time code for the user on the given
// channel and dispatches it to recipient. A fresh send supersedes any pending
// code for the same (user, channel); sends inside the throttle window answer
// [ErrVerificationThrottled].
func (e *Engine) SendVerificationCode(ctx context.Context, userID uuid.UUID, typ verification.Type, recipient string) error {
	if _, err := e.codes.GenerateAndSend(ctx, userID, typ, recipient); err != nil {
		return e.mapVerificationErr("send verification code", err)
	}

	e.metrics.CodesIssued.WithLabelValues(string(typ)).Inc()
	e.emit(ctx, EventCodeSent, userID, uuid.Nil, map[string]string{"channel": string(typ)})
	return nil
}

// ConfirmVerificationCode checks a presented code. On the email channel a
// successful check also marks the account verified. A wrong code answers
// [ErrVerificationInvalid]; with nothing pending the answer is [ErrNotFound].
func (e *Engine) ConfirmVerificationCode(ctx context.Context, userID uuid.UUID, typ verification.Type, code string) error {
	if err := e.codes.Verify(ctx, userID, typ, code); err != nil {
		e.metrics.CodesVerified.WithLabelValues("failure").Inc()
		return e.mapVerificationErr("confirm verification code", err)
	}
	e.metrics.CodesVerified.WithLabelValues("success").Inc()

	if typ == verification.TypeEmail {
		if err := e.store.Users().MarkVerified(ctx, userID); err != nil {
			return e.mapStoreErr("confirm verification code", err)
		}
	}

	e.emit(ctx, EventCodeConfirmed, userID, uuid.Nil, map[string]string{"channel": string(typ)})
	return nil
}

// CleanupCodes purges terminal verification codes past retention. The
// background scheduler calls this; it is exported for embedders that run
// their own.
func (e *Engine) CleanupCodes(ctx context.Context) (int64, error) {
	return e.codes.Cleanup(ctx)
}
