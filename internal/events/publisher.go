package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

const (
	defaultBuffer       = 256
	defaultWriteTimeout = 10 * time.Second
)

// Publisher hands audit events to a background writer. Publish never waits
// for the write; a failed write is logged and dropped.
type Publisher struct {
	writer       interfaces.EventWriter
	events       chan models.AuditEvent
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewPublisher starts the background writer. Close must be called to flush.
func NewPublisher(writer interfaces.EventWriter, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	p := &Publisher{
		writer:       writer,
		events:       make(chan models.AuditEvent, buffer),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish queues the event. While the buffer has room the event is always
// accepted, even with ctx done; only a full buffer makes it wait on ctx.
func (p *Publisher) Publish(ctx context.Context, event models.AuditEvent) {
	select {
	case p.events <- event:
		return
	default:
	}

	select {
	case p.events <- event:
	case <-ctx.Done():
		logrus.WithFields(eventFields(event)).Warn("⚠ Audit event dropped: context done")
	}
}

// Close stops accepting events and waits until the buffer is drained.
// Publish must not be called after Close.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.events)
	})
	<-p.done
}

func (p *Publisher) loop() {
	defer close(p.done)
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		err := p.writer.WriteEvent(ctx, event)
		cancel()
		if err != nil {
			logrus.WithError(err).WithFields(eventFields(event)).Error("❌ Failed to write audit event")
			continue
		}
		logrus.WithFields(eventFields(event)).Debug("  Audit event written")
	}
}

func eventFields(event models.AuditEvent) logrus.Fields {
	return logrus.Fields{
		"event_id":  event.ID,
		"org_id":    event.OrgID,
		"action":    event.Action,
		"object_id": event.ObjectID,
		"member_id": event.MemberID,
	}
}

// Recorder collects published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (r *Recorder) Publish(ctx context.Context, event models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) WriteEvent(ctx context.Context, event models.AuditEvent) error {
	r.Publish(ctx, event)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []models.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}
