package dispatch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/oshokin/ant-controller/internal/domain/relay"
)

// io handles the raw bank tags.
func (d *Dispatcher) io(ctx context.Context, class relay.IOClass, args []string) Result {
	if len(args) == 0 {
		return Failure(fmt.Errorf("%s: no parameter: %w", class.Tag(), ErrMalformed))
	}

	var value string
	if len(args) == 2 {
		value = args[1]
	}

	if args[0] == paramBits {
		return d.bits(ctx, class, value)
	}

	number, err := strconv.Atoi(args[0])
	if err != nil || number < 1 {
		return Failure(fmt.Errorf("%s: invalid parameter %q: %w", class.Tag(), args[0], ErrMalformed))
	}

	if !class.IsOutput() {
		return Failure(fmt.Errorf("%s: only bitwise read supported: %w", class.Tag(), ErrMalformed))
	}

	switch value {
	case "":
		level, err := d.engine.ReadPin(ctx, class, number-1)
		if err != nil {
			return Failure(err)
		}

		return OK(map[string]any{class.Tag(): map[string]any{"pin": number, "level": level}})
	case valueOn, valueOff:
		if err = d.engine.WritePin(ctx, class, number-1, value == valueOn); err != nil {
			return Failure(err)
		}

		return OK(nil)
	default:
		return Failure(fmt.Errorf("%s: invalid value %q: %w", class.Tag(), value, ErrMalformed))
	}
}

// bits reads or writes a whole bank.
func (d *Dispatcher) bits(ctx context.Context, class relay.IOClass, value string) Result {
	if value != "" {
		if !class.IsOutput() {
			return Failure(fmt.Errorf("%s: only bitwise read supported: %w", class.Tag(), ErrMalformed))
		}

		bits, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return Failure(fmt.Errorf("%s: invalid bits value %q: %w", class.Tag(), value, ErrMalformed))
		}

		if err = d.engine.WriteBits(ctx, class, uint16(bits)); err != nil {
			return Failure(err)
		}

		return OK(nil)
	}

	bank, err := d.engine.Layout().Bank(class)
	if err != nil {
		return Failure(err)
	}

	bits, err := d.engine.ReadBits(ctx, class)
	if err != nil {
		return Failure(err)
	}

	return OK(map[string]any{
		class.Tag(): map[string]any{
			"type":  class.String(),
			"kind":  bank.Kind(),
			"bits":  int(bits),
			"ioNum": bank.Count,
		},
	})
}
