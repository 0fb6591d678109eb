package authcore

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(sink, 8, testLogger())

	for i := 0; i < 5; i++ {
		d.emit(AuditEvent{Event: EventLoginSucceeded, TenantID: "t1"})
	}
	d.Close()

	if got := len(sink.C); got != 5 {
		t.Fatalf("delivered %d events, want 5", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped %d events, want 0", d.Dropped())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := sinkFunc(func(AuditEvent) { <-block })
	d := newAuditDispatcher(sink, 1, testLogger())

	// One event occupies the worker, one fills the buffer; the rest drop.
	for i := 0; i < 10; i++ {
		d.emit(AuditEvent{Event: EventLoginFailed})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	close(block)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Write(AuditEvent{
		Time:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TenantID: "t1",
		Event:    EventLogout,
		Detail:   map[string]string{"count": "1"},
	})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["event"] != EventLogout || decoded["tenant_id"] != "t1" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

type sinkFunc func(AuditEvent)

func (f sinkFunc) Write(event AuditEvent) { f(event) }
