package engine

import (
	"context"
	"fmt"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
)

// Activate makes button the selection of group. The "OFF" button resets the
// group instead. Unknown groups and buttons fail with relay.ErrNotFound and
// leave the state untouched.
func (e *Engine) Activate(ctx context.Context, group, button string) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		return e.activate(ctx, group, button)
	})
}

// Deactivate resets group to "OFF". It is idempotent.
func (e *Engine) Deactivate(ctx context.Context, group string) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		g, err := e.snapshot.Group(group)
		if err != nil {
			return err
		}

		e.reset(ctx, g)

		return nil
	})
}

// SetButton activates or deactivates the group owning button.
func (e *Engine) SetButton(ctx context.Context, button string, on bool) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		return e.setButton(ctx, button, on)
	})
}

// ButtonState reports whether button is the selection of its group.
func (e *Engine) ButtonState(ctx context.Context, button string) (bool, error) {
	var active bool

	err := e.shared(ctx, func() error {
		g, b, err := e.snapshot.FindButton(button)
		if err != nil {
			return err
		}

		active = g.IsActive(b.Name)

		return nil
	})

	return active, err
}

// Selection returns the current selection of group.
func (e *Engine) Selection(ctx context.Context, group string) (string, error) {
	var current string

	err := e.shared(ctx, func() error {
		g, err := e.snapshot.Group(group)
		if err != nil {
			return err
		}

		current = g.Current

		return nil
	})

	return current, err
}

// setButton routes to activate or reset on the owning group. The caller holds the lock.
func (e *Engine) setButton(ctx context.Context, button string, on bool) error {
	g, b, err := e.snapshot.FindButton(button)
	if err != nil {
		return err
	}

	if !on {
		e.reset(ctx, g)

		return nil
	}

	return e.activate(ctx, g.Name, b.Name)
}

// activate is the state machine transition. The caller holds the lock.
func (e *Engine) activate(ctx context.Context, group, button string) error {
	g, err := e.snapshot.Group(group)
	if err != nil {
		return err
	}

	if button == relay.Off {
		e.reset(ctx, g)

		return nil
	}

	b, ok := g.Button(button)
	if !ok {
		return fmt.Errorf("button %q in group %q: %w", button, group, relay.ErrNotFound)
	}

	pins, err := e.snapshot.ResolvePins(b.Pins)
	if err != nil {
		return fmt.Errorf("resolve button %q: %w", b.Name, err)
	}

	if e.policy == PolicyStrict {
		if err = e.checkOwnGuards(ctx, g.Name, b.Name); err != nil {
			return err
		}
	}

	e.reset(ctx, g)

	for _, pin := range pins {
		e.writePin(ctx, pin, true)
	}

	g.Current = b.Name

	logger.InfoKV(ctx, "Button activated", "group", g.Name, "button", b.Name, "pins", len(pins))

	e.reevaluate(ctx, false)

	return nil
}

// reset drives every pin used by the group low and selects "OFF".
// The caller holds the lock.
func (e *Engine) reset(ctx context.Context, g *relay.Group) {
	pins, err := e.snapshot.GroupPins(g.Name)
	if err != nil {
		// Buttons were resolved at load time; a failure here means the
		// snapshot was built by hand. Reset what can be resolved.
		logger.ErrorKV(ctx, "Group pins unresolved", "group", g.Name, "error", err)

		pins = e.resolvableGroupPins(g)
	}

	for _, pin := range pins {
		e.writePin(ctx, pin, false)
	}

	if g.Current != relay.Off {
		logger.InfoKV(ctx, "Group reset", "group", g.Name, "previous", g.Current)
	}

	g.Current = relay.Off
}

// resolvableGroupPins resolves the group pins one by one, skipping failures.
func (e *Engine) resolvableGroupPins(g *relay.Group) []relay.Pin {
	var (
		result []relay.Pin
		seen   = make(map[relay.PinID]struct{})
	)

	for _, b := range g.Buttons {
		for _, name := range b.Pins {
			pin, err := e.snapshot.Lookup(name, false)
			if err != nil {
				continue
			}

			if _, ok := seen[pin.ID()]; ok {
				continue
			}

			seen[pin.ID()] = struct{}{}

			result = append(result, pin)
		}
	}

	return result
}

// checkOwnGuards fails with relay.ErrGuardViolation when a guard protecting
// button of group is triggered right now. The caller holds the lock.
func (e *Engine) checkOwnGuards(ctx context.Context, group, button string) error {
	for _, ref := range e.snapshot.GatherGuards(relay.GuardFilter{Group: group, Button: button}) {
		triggered, err := e.triggered(ref)
		if err != nil {
			logger.ErrorKV(ctx, "Guard read failed", "pin", ref.Pin.Name, "error", err)

			continue
		}

		if triggered {
			return fmt.Errorf("button %q blocked by pin %q: %w", button, ref.Pin.Name, relay.ErrGuardViolation)
		}
	}

	return nil
}
