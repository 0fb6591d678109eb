package authcore

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the request path from the sink. Events go through
// a bounded channel consumed by a single worker; when the channel is full the
// event is dropped and counted rather than blocking a login.
type auditDispatcher struct {
	events  chan AuditEvent
	sink    AuditSink
	logger  *slog.Logger
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

func newAuditDispatcher(sink AuditSink, size int, logger *slog.Logger) *auditDispatcher {
	d := &auditDispatcher{
		events: make(chan AuditEvent, size),
		sink:   sink,
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		d.sink.Write(event)
	}
}

// emit enqueues an event, dropping if the buffer is full.
func (d *auditDispatcher) emit(event AuditEvent) {
	select {
	case d.events <- event:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were lost to a full buffer.
func (d *auditDispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting events, drains the buffer into the sink and waits
// for the worker to finish.
func (d *auditDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.events)
		<-d.done
		if n := d.Dropped(); n > 0 {
			d.logger.Warn("audit events dropped", "count", n)
		}
	})
}
