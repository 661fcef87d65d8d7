package notify

import (
	"context"
	"sync"

	"github.com/fieldops/pitsignal/internal/platform/audit"
	"github.com/fieldops/pitsignal/internal/platform/timeouts"
	"github.com/rs/zerolog"
)

// DefaultQueueSize bounds the dispatcher's pending notification queue.
const DefaultQueueSize = 64

// Notification is one queued push batch.
type Notification struct {
	Recipients []int64
	Payload    Payload
}

// Dispatcher decouples notification delivery from the mutations that trigger
// it. Enqueue never blocks and never fails the caller; a full queue drops the
// batch. A single worker goroutine performs the actual sends.
type Dispatcher struct {
	gateway Gateway
	queue   chan Notification
	audit   *audit.Logger
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher delivering through the given gateway.
// A non-positive queueSize falls back to DefaultQueueSize.
func NewDispatcher(gateway Gateway, queueSize int, auditLog *audit.Logger, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		gateway: gateway,
		queue:   make(chan Notification, queueSize),
		audit:   auditLog,
		log:     log,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules one batch for delivery. Returns false when the batch was
// dropped, either because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(notification Notification) bool {
	if len(notification.Recipients) == 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.audit.NotificationDropped(notification.Payload.Title, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- notification:
		return true
	default:
		d.audit.NotificationDropped(notification.Payload.Title, "queue full")
		d.log.Warn().
			Str("title", notification.Payload.Title).
			Int("recipients", len(notification.Recipients)).
			Msg("notification queue full, dropping batch")
		return false
	}
}

// Close stops accepting new batches, delivers what is already queued, and
// waits for the worker to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for notification := range d.queue {
		d.send(notification)
	}
}

func (d *Dispatcher) send(notification Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.NotificationSend)
	defer cancel()

	if err := d.gateway.Send(ctx, notification.Recipients, notification.Payload); err != nil {
		d.log.Warn().
			Err(err).
			Str("title", notification.Payload.Title).
			Int("recipients", len(notification.Recipients)).
			Msg("notification delivery failed")
		return
	}
	d.audit.NotificationDispatched(notification.Payload.Title, len(notification.Recipients))
}
