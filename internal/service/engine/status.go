package engine

import (
	"context"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
)

// BankStatus is the state of one bank.
type BankStatus struct {
	// Class is the I/O class of the bank.
	Class relay.IOClass
	// Kind is "output" or "input".
	Kind string
	// Bits holds one bit per line.
	Bits uint16
	// Count is the number of lines.
	Count int
}

// Status is a consistent view of the controller.
type Status struct {
	// Banks lists every bank of the layout.
	Banks []BankStatus
	// Groups maps group names to their selection.
	Groups map[string]string
	// Source names the active preset.
	Source string
	// Valid reports whether the active preset loaded without error.
	Valid bool
	// Pins is the number of registered pins.
	Pins int
	// Buttons is the number of buttons over all groups.
	Buttons int
}

// Status reads every bank and the group selections under the lock.
// A bank that cannot be read reports zero bits.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var status Status

	err := e.shared(ctx, func() error {
		layout := e.backend.Layout()
		status = Status{
			Banks:   make([]BankStatus, 0, len(layout)),
			Groups:  e.snapshot.Selections(),
			Source:  e.snapshot.Source,
			Valid:   e.snapshot.Valid,
			Pins:    e.snapshot.PinCount(),
			Buttons: e.snapshot.ButtonCount(),
		}

		for _, bank := range layout {
			bits, err := e.backend.ReadBits(bank.Class)
			if err != nil {
				logger.ErrorKV(ctx, "Bank read failed", "class", bank.Class.Tag(), "error", err)
			}

			status.Banks = append(status.Banks, BankStatus{
				Class: bank.Class,
				Kind:  bank.Kind(),
				Bits:  bits,
				Count: bank.Count,
			})
		}

		return nil
	})

	return status, err
}

// Catalog returns a copy of the pins and groups of the active snapshot.
func (e *Engine) Catalog(ctx context.Context) ([]relay.Pin, []relay.Group, error) {
	var (
		pins   []relay.Pin
		groups []relay.Group
	)

	err := e.shared(ctx, func() error {
		pins = e.snapshot.Pins()

		for _, name := range e.snapshot.GroupNames() {
			g, err := e.snapshot.Group(name)
			if err != nil {
				continue
			}

			groups = append(groups, relay.Group{
				Name:    g.Name,
				Buttons: append([]relay.Button(nil), g.Buttons...),
				Current: g.Current,
			})
		}

		return nil
	})

	return pins, groups, err
}
