package engine

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
)

// ReevaluateGuards runs one guard pass and returns the deactivated buttons.
// With inputOnly only guards carried by input pins are checked.
func (e *Engine) ReevaluateGuards(ctx context.Context, inputOnly bool) ([]string, error) {
	var deactivated []string

	err := e.exclusive(ctx, func(ctx context.Context) error {
		deactivated = e.reevaluate(ctx, inputOnly)

		return nil
	})

	return deactivated, err
}

// RunGuardTask repeats the guard pass every interval until ctx is done.
// A pass that cannot get the lock is skipped; the next tick retries.
func (e *Engine) RunGuardTask(ctx context.Context, interval time.Duration, inputOnly bool) {
	ctx = logger.WithName(ctx, "guard")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Guard task started", "interval", interval, "inputs_only", inputOnly)

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Guard task stopped")

			return
		case <-ticker.C:
			_, err := e.ReevaluateGuards(ctx, inputOnly)
			if errors.Is(err, relay.ErrBusy) && ctx.Err() == nil {
				logger.DebugKV(ctx, "Guard pass skipped", "error", err)
			}
		}
	}
}

// reevaluate deactivates every active button whose guard is triggered.
// One failing pair never stops the scan. The caller holds the lock.
func (e *Engine) reevaluate(ctx context.Context, inputOnly bool) []string {
	var deactivated []string

	for _, ref := range e.snapshot.GatherGuards(relay.GuardFilter{InputOnly: inputOnly}) {
		triggered, err := e.triggered(ref)
		if err != nil {
			logger.ErrorKV(ctx, "Guard read failed", "pin", ref.Pin.Name, "error", err)

			continue
		}

		if !triggered {
			continue
		}

		g, b, err := e.snapshot.GuardedButton(ref.Guard)
		if err != nil {
			logger.ErrorKV(ctx, "Guarded button missing", "pin", ref.Pin.Name, "error", err)

			continue
		}

		if !g.IsActive(b.Name) {
			continue
		}

		logger.InfoKV(ctx, "Guard triggered",
			"pin", ref.Pin.Name,
			"on_high", ref.Guard.OnHigh,
			"group", g.Name,
			"button", b.Name,
		)

		e.reset(ctx, g)

		deactivated = append(deactivated, b.Name)
	}

	return deactivated
}

// triggered reads the guarding pin and compares it with the guard level.
func (e *Engine) triggered(ref relay.GuardRef) (bool, error) {
	level, err := e.backend.ReadPin(ref.Pin.Class, ref.Pin.Index)
	if err != nil {
		return false, err
	}

	return level == ref.Guard.OnHigh, nil
}
