package engine

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/hardware"
)

// interlockPreset gives each of three groups one button guarded by its own input.
const interlockPreset = `
[[pin]]
name = "RL1"
antctrl = "RL1"
sch = "K1"

[[pin]]
name = "RL2"
antctrl = "RL2"
sch = "K2"

[[pin]]
name = "RL3"
antctrl = "RL3"
sch = "K3"

[[pin]]
name = "IN1"
antctrl = "INP1"
sch = "J1"

[[pin]]
name = "IN2"
antctrl = "INP2"
sch = "J2"

[[pin]]
name = "IN3"
antctrl = "INP3"
sch = "J3"

[[buttons.ant]]
name = "A"
pins = ["RL1"]
disable_on_high = ["IN1"]

[[buttons.amp]]
name = "B"
pins = ["RL2"]
disable_on_high = ["IN2"]

[[buttons.tx]]
name = "T"
pins = ["RL3"]
disable_on_high = ["IN3"]
`

// errReadFailed is returned by failingReads for its broken line.
var errReadFailed = errors.New("i2c read failed")

// failingReads is a memory backend with one unreadable line.
type failingReads struct {
	*hardware.Memory

	// broken is the line whose reads fail.
	broken relay.PinID
}

func (b *failingReads) ReadPin(class relay.IOClass, index int) (bool, error) {
	if (relay.PinID{Class: class, Index: index}) == b.broken {
		return false, errReadFailed
	}

	return b.Memory.ReadPin(class, index)
}

// newPresetEngine returns a booted engine over backend with the given preset.
func newPresetEngine(t *testing.T, backend hardware.Backend, text string) *Engine {
	t.Helper()

	e := New(Options{
		Backend:     backend,
		Snapshot:    parseSnapshot(t, "interlock.conf", text),
		LockTimeout: 50 * time.Millisecond,
	})

	require.NoError(t, e.Boot(context.Background()))

	return e
}

// activateAll selects A, B and T.
func activateAll(t *testing.T, e *Engine) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, e.Activate(ctx, "ant", "A"))
	require.NoError(t, e.Activate(ctx, "amp", "B"))
	require.NoError(t, e.Activate(ctx, "tx", "T"))
}

// TestRunGuardTask catches an input change without any command.
func TestRunGuardTask(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e, backend := newTestEngine(t, PolicyReactive)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			defer close(done)

			e.RunGuardTask(ctx, 50*time.Millisecond, true)
		}()

		require.NoError(t, e.Activate(ctx, "ant", "C"))
		require.Equal(t, "C", selection(t, e, "ant"))

		// SW goes high: C must drop on the next tick.
		backend.Force(relay.Input, 0, true)

		time.Sleep(60 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, relay.Off, selection(t, e, "ant"))
		require.False(t, level(t, backend, relay.Relay, 2))

		cancel()
		<-done
	})
}

// TestLock_Busy fails with a busy error after the lock timeout.
func TestLock_Busy(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e, _ := newTestEngine(t, PolicyReactive)
		ctx := context.Background()

		// Hold the mutual exclusion domain as a long running operation would.
		require.NoError(t, e.sem.Acquire(ctx, 1))

		start := time.Now()

		err := e.Activate(ctx, "ant", "A")
		require.ErrorIs(t, err, relay.ErrBusy)
		require.Equal(t, 50*time.Millisecond, time.Since(start))

		_, err = e.Status(ctx)
		require.ErrorIs(t, err, relay.ErrBusy)

		_, err = e.ReevaluateGuards(ctx, true)
		require.ErrorIs(t, err, relay.ErrBusy)

		e.sem.Release(1)

		require.NoError(t, e.Activate(ctx, "ant", "A"))
		require.Equal(t, "A", selection(t, e, "ant"))
	})
}

// TestLock_Serializes runs concurrent activations and checks the group invariant.
func TestLock_Serializes(t *testing.T) {
	t.Parallel()

	e, backend := newTestEngine(t, PolicyReactive)
	e.lockTimeout = time.Second

	ctx := context.Background()
	done := make(chan error)

	for _, button := range []string{"A", "B", "C", "A", "B", "C"} {
		go func() {
			done <- e.Activate(ctx, "ant", button)
		}()
	}

	for range 6 {
		require.NoError(t, <-done)
	}

	current := selection(t, e, "ant")
	require.Contains(t, []string{"A", "B", "C"}, current)

	// Exactly the lines of the winner are energized.
	bits, err := backend.ReadBits(relay.Relay)
	require.NoError(t, err)

	want := map[string]uint16{"A": 0b001, "B": 0b010, "C": 0b101}
	require.Equal(t, want[current], bits)
}

// TestReevaluateGuards_SeveralGroups drops every triggered button in one pass.
func TestReevaluateGuards_SeveralGroups(t *testing.T) {
	t.Parallel()

	backend := hardware.NewMemory(hardware.DefaultLayout(8))
	e := newPresetEngine(t, backend, interlockPreset)
	ctx := context.Background()

	activateAll(t, e)

	backend.Force(relay.Input, 0, true)
	backend.Force(relay.Input, 1, true)

	deactivated, err := e.ReevaluateGuards(ctx, true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"A", "B"}, deactivated)

	require.Equal(t, relay.Off, selection(t, e, "ant"))
	require.Equal(t, relay.Off, selection(t, e, "amp"))
	require.Equal(t, "T", selection(t, e, "tx"))

	bits, err := backend.ReadBits(relay.Relay)
	require.NoError(t, err)
	require.Equal(t, uint16(0b100), bits)
}

// TestReevaluateGuards_ReadFailure keeps scanning past a line that cannot be read.
func TestReevaluateGuards_ReadFailure(t *testing.T) {
	t.Parallel()

	backend := &failingReads{
		Memory: hardware.NewMemory(hardware.DefaultLayout(8)),
		broken: relay.PinID{Class: relay.Input, Index: 0},
	}
	e := newPresetEngine(t, backend, interlockPreset)
	ctx := context.Background()

	activateAll(t, e)

	for index := range 3 {
		backend.Force(relay.Input, index, true)
	}

	// IN1 is scanned first and fails; IN2 and IN3 are still enforced.
	deactivated, err := e.ReevaluateGuards(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "T"}, deactivated)

	require.Equal(t, "A", selection(t, e, "ant"))
	require.Equal(t, relay.Off, selection(t, e, "amp"))
	require.Equal(t, relay.Off, selection(t, e, "tx"))
}

// TestReevaluateGuards_SharedButtonName enforces a guard in the group that declared it.
func TestReevaluateGuards_SharedButtonName(t *testing.T) {
	t.Parallel()

	backend := hardware.NewMemory(hardware.DefaultLayout(8))
	e := newPresetEngine(t, backend, `
[[pin]]
name = "RL1"
antctrl = "RL1"
sch = "K1"

[[pin]]
name = "RL2"
antctrl = "RL2"
sch = "K2"

[[pin]]
name = "IN1"
antctrl = "INP1"
sch = "J1"

[[buttons.amp]]
name = "ON"
pins = ["RL1"]

[[buttons.tx]]
name = "ON"
pins = ["RL2"]
disable_on_high = ["IN1"]
`)
	ctx := context.Background()

	require.NoError(t, e.Activate(ctx, "amp", "ON"))
	require.NoError(t, e.Activate(ctx, "tx", "ON"))

	backend.Force(relay.Input, 0, true)

	deactivated, err := e.ReevaluateGuards(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{"ON"}, deactivated)

	require.Equal(t, relay.Off, selection(t, e, "tx"))
	require.False(t, level(t, backend, relay.Relay, 1))

	// The amp button of the same name has no guard.
	require.Equal(t, "ON", selection(t, e, "amp"))
	require.True(t, level(t, backend, relay.Relay, 0))
}
