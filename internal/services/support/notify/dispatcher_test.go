package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingGateway struct {
	mu      sync.Mutex
	batches []Notification
	release chan struct{}
}

func (g *countingGateway) Send(ctx context.Context, recipients []int64, payload Payload) error {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.batches = append(g.batches, Notification{Recipients: recipients, Payload: payload})
	return nil
}

func (g *countingGateway) sent() []Notification {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Notification{}, g.batches...)
}

func TestDispatcherDeliversQueuedBatches(t *testing.T) {
	t.Parallel()

	gateway := &countingGateway{}
	dispatcher := NewDispatcher(gateway, 8, nil, zerolog.Nop())

	if ok := dispatcher.Enqueue(Notification{Recipients: []int64{1, 2}, Payload: Payload{Title: "first"}}); !ok {
		t.Fatal("expected enqueue to succeed")
	}
	if ok := dispatcher.Enqueue(Notification{Recipients: []int64{3}, Payload: Payload{Title: "second"}}); !ok {
		t.Fatal("expected enqueue to succeed")
	}
	dispatcher.Close()

	sent := gateway.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sent))
	}
	if sent[0].Payload.Title != "first" || sent[1].Payload.Title != "second" {
		t.Fatalf("expected in-order delivery, got %q then %q", sent[0].Payload.Title, sent[1].Payload.Title)
	}
}

func TestDispatcherSkipsEmptyRecipientSets(t *testing.T) {
	t.Parallel()

	gateway := &countingGateway{}
	dispatcher := NewDispatcher(gateway, 8, nil, zerolog.Nop())

	if ok := dispatcher.Enqueue(Notification{Payload: Payload{Title: "nobody"}}); !ok {
		t.Fatal("expected empty batch to be accepted as a no-op")
	}
	dispatcher.Close()

	if sent := gateway.sent(); len(sent) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(sent))
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	gateway := &countingGateway{release: release}
	dispatcher := NewDispatcher(gateway, 1, nil, zerolog.Nop())

	// First batch occupies the worker, second fills the queue.
	dispatcher.Enqueue(Notification{Recipients: []int64{1}, Payload: Payload{Title: "in flight"}})
	waitForQueueDepth(t, dispatcher, 1)
	dispatcher.Enqueue(Notification{Recipients: []int64{2}, Payload: Payload{Title: "queued"}})

	if ok := dispatcher.Enqueue(Notification{Recipients: []int64{3}, Payload: Payload{Title: "overflow"}}); ok {
		t.Fatal("expected overflow batch to be dropped")
	}

	close(release)
	dispatcher.Close()

	sent := gateway.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(sent))
	}
}

func TestDispatcherRejectsEnqueueAfterClose(t *testing.T) {
	t.Parallel()

	gateway := &countingGateway{}
	dispatcher := NewDispatcher(gateway, 8, nil, zerolog.Nop())
	dispatcher.Close()

	if ok := dispatcher.Enqueue(Notification{Recipients: []int64{1}, Payload: Payload{Title: "late"}}); ok {
		t.Fatal("expected enqueue after close to fail")
	}
	if sent := gateway.sent(); len(sent) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(sent))
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(&countingGateway{}, 8, nil, zerolog.Nop())
	dispatcher.Close()
	dispatcher.Close()
}

// waitForQueueDepth waits until the first enqueued batch has been picked up
// by the worker, leaving the queue with capacity for exactly the next batch.
func waitForQueueDepth(t *testing.T, d *Dispatcher, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(d.queue) < want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("worker never picked up the in-flight batch")
}
