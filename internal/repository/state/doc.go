// Package state persists the group selections of the controller.
//
// The FileRepository stores selections as protobuf JSON on disk so the
// daemon can re-apply them after a restart. MemoryRepository serves tests
// and setups without a writable filesystem.
package state
