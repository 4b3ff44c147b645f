// Package engine implements the button activation engine and the guard
// re-evaluator of the antenna controller.
//
// The Engine owns the active relay.Snapshot and the hardware.Backend. Every
// entry point, whether it mutates or only reads, runs inside one mutual
// exclusion domain: a weighted semaphore of size one acquired with a bounded
// wait. A caller that cannot get in before the lock timeout receives an
// error wrapping relay.ErrBusy.
//
// Activation always resets the whole group before energizing the pins of the
// new selection, then runs a guard pass over every pin class. The periodic
// guard task (RunGuardTask) repeats the pass on a fixed interval to catch
// changes caused by the outside world.
package engine
