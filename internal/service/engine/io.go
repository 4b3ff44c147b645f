package engine

import (
	"context"
	"fmt"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
)

// ReadPin returns the level of one line.
func (e *Engine) ReadPin(ctx context.Context, class relay.IOClass, index int) (bool, error) {
	var level bool

	err := e.shared(ctx, func() error {
		var err error

		level, err = e.backend.ReadPin(class, index)

		return err
	})

	return level, err
}

// ReadBits returns the levels of a bank, one bit per index.
func (e *Engine) ReadBits(ctx context.Context, class relay.IOClass) (uint16, error) {
	var bits uint16

	err := e.shared(ctx, func() error {
		var err error

		bits, err = e.backend.ReadBits(class)

		return err
	})

	return bits, err
}

// WritePin drives one output line outside of any button, then runs a guard
// pass over every class. Backend rejections are returned to the caller.
func (e *Engine) WritePin(ctx context.Context, class relay.IOClass, index int, level bool) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		if err := e.backend.WritePin(class, index, level); err != nil {
			return fmt.Errorf("write %s[%d]: %w", class.Tag(), index, err)
		}

		logger.InfoKV(ctx, "Pin written", "class", class.Tag(), "index", index, "level", level)

		e.reevaluate(ctx, false)

		return nil
	})
}

// WriteBits drives a whole output bank, then runs a guard pass over every class.
func (e *Engine) WriteBits(ctx context.Context, class relay.IOClass, bits uint16) error {
	return e.exclusive(ctx, func(ctx context.Context) error {
		if err := e.backend.WriteBits(class, bits); err != nil {
			return fmt.Errorf("write %s bits: %w", class.Tag(), err)
		}

		logger.InfoKV(ctx, "Bank written", "class", class.Tag(), "bits", bits)

		e.reevaluate(ctx, false)

		return nil
	})
}
