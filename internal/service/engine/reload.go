package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/hardware"
	"github.com/oshokin/ant-controller/internal/logger"
)

// errInvalidSnapshot is returned when Reload receives a snapshot that did not load.
var errInvalidSnapshot = errors.New("snapshot is not valid")

// Boot drives every output bank low, then resets every group.
func (e *Engine) Boot(ctx context.Context) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		if err := hardware.ResetOutputs(e.backend); err != nil {
			logger.ErrorKV(ctx, "Output reset failed", "error", err)
		}

		e.resetAll(ctx)

		logger.InfoKV(ctx, "Controller booted",
			"source", e.snapshot.Source,
			"valid", e.snapshot.Valid,
			"groups", len(e.snapshot.GroupNames()),
		)

		return nil
	})
}

// Reload swaps in a freshly loaded snapshot with exclusive access. The old
// groups are reset first, then the new ones, so no pin energized by the old
// configuration survives. An invalid snapshot is refused and the current
// one stays active.
func (e *Engine) Reload(ctx context.Context, snapshot *relay.Snapshot) error {
	if snapshot == nil || !snapshot.Valid {
		return fmt.Errorf("reload: %w: %w", relay.ErrParse, errInvalidSnapshot)
	}

	return e.exclusive(ctx, func(ctx context.Context) error {
		previous := e.snapshot.Source

		e.resetAll(ctx)
		e.snapshot = snapshot
		e.resetAll(ctx)

		logger.InfoKV(ctx, "Configuration reloaded",
			"previous", previous,
			"source", snapshot.Source,
			"pins", snapshot.PinCount(),
			"buttons", snapshot.ButtonCount(),
		)

		return nil
	})
}

// Restore re-activates saved selections through the normal activation path.
// Unknown groups or buttons are skipped with a warning.
func (e *Engine) Restore(ctx context.Context, selections map[string]string) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		for _, group := range e.snapshot.GroupNames() {
			button, ok := selections[group]
			if !ok || button == relay.Off {
				continue
			}

			if err := e.activate(ctx, group, button); err != nil {
				logger.WarnKV(ctx, "Selection not restored", "group", group, "button", button, "error", err)
			}
		}

		return nil
	})
}

// resetAll resets every group in name order. The caller holds the lock.
func (e *Engine) resetAll(ctx context.Context) {
	for _, name := range e.snapshot.GroupNames() {
		g, err := e.snapshot.Group(name)
		if err != nil {
			continue
		}

		e.reset(ctx, g)
	}
}
