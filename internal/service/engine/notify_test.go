package engine

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/hardware"
)

// recorder collects the changes delivered to an observer.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) observe(_ context.Context, change Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.changes = append(r.changes, change)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Change(nil), r.changes...)
}

// TestObservers_BlockingObserver keeps the guard task running while an observer hangs.
func TestObservers_BlockingObserver(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := hardware.NewMemory(hardware.DefaultLayout(8))
		e := newPresetEngine(t, backend, interlockPreset)

		var (
			release = make(chan struct{})
			seen    recorder
		)

		e.Subscribe(func(ctx context.Context, change Change) {
			seen.observe(ctx, change)
			<-release
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			defer close(done)

			e.RunGuardTask(ctx, 20*time.Millisecond, true)
		}()

		require.NoError(t, e.Activate(ctx, "ant", "A"))
		require.NoError(t, e.Activate(ctx, "amp", "B"))

		backend.Force(relay.Input, 0, true)
		time.Sleep(30 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, relay.Off, selection(t, e, "ant"))

		// The first change is still stuck in the observer.
		backend.Force(relay.Input, 1, true)
		time.Sleep(30 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, relay.Off, selection(t, e, "amp"))
		require.Len(t, seen.all(), 1)

		close(release)
		require.NoError(t, e.Flush(ctx))

		// Changes queued behind the hung observer collapse into the latest one.
		changes := seen.all()
		require.Len(t, changes, 2)
		require.Equal(t, relay.Off, changes[1].Groups["ant"])
		require.Equal(t, relay.Off, changes[1].Groups["amp"])

		cancel()
		<-done
	})
}

// TestObservers_LastChangeWins checks that concurrent mutations end with the engine state.
func TestObservers_LastChangeWins(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, PolicyReactive)
	e.lockTimeout = time.Second

	var seen recorder

	e.Subscribe(func(ctx context.Context, change Change) {
		seen.observe(ctx, change)
		time.Sleep(time.Millisecond)
	})

	ctx := context.Background()
	errs := make(chan error)

	for i := range 20 {
		button := []string{"A", "B"}[i%2]

		go func() {
			errs <- e.Activate(ctx, "ant", button)
		}()
	}

	for range 20 {
		require.NoError(t, <-errs)
	}

	require.NoError(t, e.Flush(ctx))

	changes := seen.all()
	require.NotEmpty(t, changes)
	require.Equal(t, selection(t, e, "ant"), changes[len(changes)-1].Groups["ant"])
}

// TestFlush_Idle returns at once without observers or pending changes.
func TestFlush_Idle(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, PolicyReactive)
	ctx := context.Background()

	require.NoError(t, e.Flush(ctx))
	require.NoError(t, e.Activate(ctx, "ant", "A"))
	require.NoError(t, e.Flush(ctx))
}
