package verification

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Message is an outbound verification message handed to a provider.
type Message struct {
	TenantID  string
	UserID    uuid.UUID
	Recipient string
	Subject   string
	Body      string
	Type      Type
}

// MessageProvider delivers verification messages over one channel. Concrete
// integrations (SMTP, SendGrid, Twilio, Vonage) live outside the core; the
// engine only needs the capability.
type MessageProvider interface {
	// VerificationType reports which channel this provider serves.
	VerificationType() Type
	// Send dispatches the message and returns a provider delivery id for
	// observability.
	Send(ctx context.Context, msg Message) (string, error)
}

// MockProvider records sent messages for tests and local development.
type MockProvider struct {
	typ Type

	mu       sync.Mutex
	messages []Message
	fail     error
}

// NewMockProvider returns a MockProvider serving the given channel.
func NewMockProvider(typ Type) *MockProvider {
	return &MockProvider{typ: typ}
}

// FailWith makes every subsequent Send return err.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func (p *MockProvider) VerificationType() Type {
	return p.typ
}

func (p *MockProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return "", p.fail
	}
	if msg.Type != p.typ {
		return "", errors.New("message type does not match provider channel")
	}

	p.messages = append(p.messages, msg)
	return uuid.NewString(), nil
}

// Sent returns a copy of the messages delivered so far.
func (p *MockProvider) Sent() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
