package authcore

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit event names emitted by the engine.
const (
	EventUserRegistered    = "user.registered"
	EventUserDeactivated   = "user.deactivated"
	EventUserReactivated   = "user.reactivated"
	EventLoginSucceeded    = "login.succeeded"
	EventLoginFailed       = "login.failed"
	EventLoginLocked       = "login.locked"
	EventLoginChallenged   = "login.challenged"
	EventMFACompleted      = "mfa.completed"
	EventLogout            = "session.logout"
	EventSessionTerminated = "session.terminated"
	EventPasswordChanged   = "password.changed"
	EventCodeSent          = "verification.sent"
	EventCodeConfirmed     = "verification.confirmed"
	EventCredentialCloned  = "credential.cloned"
)

// AuditEvent is one security-relevant occurrence. Detail never contains
// passwords, tokens or codes.
type AuditEvent struct {
	Time      time.Time         `json:"time"`
	TenantID  string            `json:"tenant_id"`
	Event     string            `json:"event"`
	UserID    uuid.UUID         `json:"user_id,omitempty"`
	SessionID uuid.UUID         `json:"session_id,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// AuditSink receives events from the dispatcher, one call at a time. A slow
// sink causes drops, never backpressure on the login path.
type AuditSink interface {
	Write(event AuditEvent)
}

// NoOpSink discards all events. It is the default sink.
type NoOpSink struct{}

func (NoOpSink) Write(AuditEvent) {}

// ChannelSink forwards events to a caller-owned channel, dropping when the
// channel is full.
type ChannelSink struct {
	C chan AuditEvent
}

// NewChannelSink returns a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{C: make(chan AuditEvent, size)}
}

func (s *ChannelSink) Write(event AuditEvent) {
	select {
	case s.C <- event:
	default:
	}
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink returns a sink encoding events onto w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Write(event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}
