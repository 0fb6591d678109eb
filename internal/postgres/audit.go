package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authcore "github.com/authcore-io/authcore"
)

// AuditSink persists audit events into session_audit_log. It satisfies
// authcore.AuditSink; the dispatcher serializes calls, so no locking here.
type AuditSink struct {
	db     DB
	logger *slog.Logger
}

// NewAuditSink returns a sink writing through db.
func NewAuditSink(db DB, logger *slog.Logger) *AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSink{db: db, logger: logger}
}

// Write inserts one event. Failures are logged and dropped; audit persistence
// never propagates errors back into the request path.
func (s *AuditSink) Write(event authcore.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var detail []byte
	if len(event.Detail) > 0 {
		detail, _ = json.Marshal(event.Detail)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO session_audit_log (tenant_id, user_id, session_id, event, ip_address, user_agent, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.TenantID, nullUUID(event.UserID), nullUUID(event.SessionID),
		event.Event, event.IPAddress, event.UserAgent, detail, event.Time,
	)
	if err != nil {
		s.logger.Warn("audit insert failed", "event", event.Event, "error", err)
	}
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
