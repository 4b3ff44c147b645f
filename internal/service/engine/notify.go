package engine

import (
	"context"
	"sync"
)

// notifier hands changes to the observers on its own goroutine.
// Only the latest pending change is kept; older ones are superseded.
type notifier struct {
	// mu guards every field below.
	mu sync.Mutex
	// observers receive state changes.
	observers []Observer
	// pending is the change waiting for delivery, nil when idle.
	pending *Change
	// pendingCtx carries the logger fields of the operation behind pending.
	pendingCtx context.Context //nolint:containedctx // Handed to the delivery goroutine.
	// done is closed when the running delivery goroutine exits; nil when none runs.
	done chan struct{}
}

// subscribe registers an observer.
func (n *notifier) subscribe(observer Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.observers = append(n.observers, observer)
}

// publish queues change and returns without waiting for the observers.
func (n *notifier) publish(ctx context.Context, change Change) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.observers) == 0 {
		return
	}

	n.pending = &change
	n.pendingCtx = context.WithoutCancel(ctx)

	if n.done != nil {
		return
	}

	n.done = make(chan struct{})

	go n.deliver(n.done)
}

// deliver runs the observers for each pending change until none is left.
func (n *notifier) deliver(done chan struct{}) {
	defer close(done)

	for {
		n.mu.Lock()

		change, ctx := n.pending, n.pendingCtx
		if change == nil {
			n.done = nil
			n.pendingCtx = nil
			n.mu.Unlock()

			return
		}

		n.pending = nil
		observers := append([]Observer(nil), n.observers...)

		n.mu.Unlock()

		for _, observer := range observers {
			observer(ctx, *change)
		}
	}
}

// flush waits until every change published so far reached the observers.
func (n *notifier) flush(ctx context.Context) error {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
