package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/hardware"
	"github.com/oshokin/ant-controller/internal/logger"
)

// Policy decides how an activation interacts with the guards of its target.
type Policy string

const (
	// PolicyReactive always activates, then lets the guard pass deactivate
	// whatever became unsafe, the new selection included.
	PolicyReactive Policy = "reactive"
	// PolicyStrict refuses to activate a button whose own guard is triggered.
	PolicyStrict Policy = "strict"

	// DefaultLockTimeout bounds the wait for the mutual exclusion domain.
	DefaultLockTimeout = 500 * time.Millisecond
)

// Change describes the selections after a state change.
type Change struct {
	// Source names the active preset.
	Source string
	// Groups maps group names to their selection.
	Groups map[string]string
}

// Observer is notified after every operation that changed a selection or
// swapped the snapshot. Observers run on a dedicated goroutine in change
// order and may call the engine; a slow observer sees only the latest change.
type Observer func(ctx context.Context, change Change)

// Options configures an Engine.
type Options struct {
	// Backend performs the pin reads and writes.
	Backend hardware.Backend
	// Snapshot is the initial configuration; an empty invalid one when nil.
	Snapshot *relay.Snapshot
	// Policy defaults to PolicyReactive.
	Policy Policy
	// LockTimeout defaults to DefaultLockTimeout.
	LockTimeout time.Duration
}

// Engine resolves button presses into pin writes and enforces guards.
type Engine struct {
	// sem is the mutual exclusion domain.
	sem *semaphore.Weighted
	// lockTimeout bounds every acquisition of sem.
	lockTimeout time.Duration
	// backend performs pin I/O.
	backend hardware.Backend
	// policy selects reactive or strict activation.
	policy Policy
	// snapshot is the active configuration, guarded by sem.
	snapshot *relay.Snapshot
	// changes delivers state changes to the observers.
	changes notifier
}

// New creates an Engine. Nothing is written to the backend until Boot.
func New(opts Options) *Engine {
	if opts.Snapshot == nil {
		opts.Snapshot = relay.NewSnapshot("")
	}

	if opts.Policy == "" {
		opts.Policy = PolicyReactive
	}

	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}

	return &Engine{
		sem:         semaphore.NewWeighted(1),
		lockTimeout: opts.LockTimeout,
		backend:     opts.Backend,
		policy:      opts.Policy,
		snapshot:    opts.Snapshot,
	}
}

// Subscribe registers an observer for state changes.
func (e *Engine) Subscribe(observer Observer) {
	e.changes.subscribe(observer)
}

// Flush waits until the observers have seen every change made so far.
func (e *Engine) Flush(ctx context.Context) error {
	return e.changes.flush(ctx)
}

// Policy returns the activation policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Layout returns the bank layout of the backend.
func (e *Engine) Layout() hardware.Layout {
	return e.backend.Layout()
}

// acquire enters the mutual exclusion domain or fails with relay.ErrBusy.
func (e *Engine) acquire(ctx context.Context) error {
	lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	if err := e.sem.Acquire(lockCtx, 1); err != nil {
		return fmt.Errorf("acquire engine lock: %w: %w", relay.ErrBusy, err)
	}

	return nil
}

// exclusive runs op inside the mutual exclusion domain and notifies
// observers when the selections or the snapshot changed.
func (e *Engine) exclusive(ctx context.Context, op func(ctx context.Context) error) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}

	var (
		before         = e.snapshot
		beforeSelected = before.Selections()
	)

	opErr := op(ctx)

	var (
		after         = e.snapshot
		afterSelected = after.Selections()
	)

	// Queued under the lock so changes reach observers in lock order.
	if before != after || !maps.Equal(beforeSelected, afterSelected) {
		e.changes.publish(ctx, Change{Source: after.Source, Groups: afterSelected})
	}

	e.sem.Release(1)

	return opErr
}

// shared runs a read-only op inside the mutual exclusion domain.
func (e *Engine) shared(ctx context.Context, op func() error) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}

	defer e.sem.Release(1)

	return op()
}

// writePin drives one line, logging instead of failing.
func (e *Engine) writePin(ctx context.Context, pin relay.Pin, level bool) {
	if err := e.backend.WritePin(pin.Class, pin.Index, level); err != nil {
		logger.ErrorKV(ctx, "Pin write failed",
			"pin", pin.Name,
			"id", pin.ID().String(),
			"level", level,
			"error", err,
		)

		return
	}

	logger.DebugKV(ctx, "Pin written", "pin", pin.Name, "id", pin.ID().String(), "level", level)
}
