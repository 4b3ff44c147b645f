package hardware

import (
	"errors"
	"fmt"

	"github.com/oshokin/ant-controller/internal/domain/relay"
)

const (
	// BackendMemory keeps levels in RAM.
	BackendMemory = "memory"
	// BackendExpander drives MCP23017 expanders and GPIO input lines.
	BackendExpander = "expander"

	// InputsGpiocdev reads inputs through the Linux GPIO character device.
	InputsGpiocdev = "gpiocdev"
	// InputsPeriph reads inputs through periph.io.
	InputsPeriph = "periph"
	// InputsNone leaves the board without an input bank.
	InputsNone = "none"

	// defaultMemoryInputs is the input bank width of the memory backend.
	defaultMemoryInputs = 8
)

// Options selects and configures a backend.
type Options struct {
	// Backend is BackendMemory or BackendExpander.
	Backend string
	// I2CBus is the bus number hosting the expanders.
	I2CBus uint8
	// MosfetDevice is the MCP23017 device number of the MOSFET bank.
	MosfetDevice uint8
	// RelayDevice is the MCP23017 device number of the relay bank.
	RelayDevice uint8
	// OptoTTLDevice is the MCP23017 device number shared by opto and TTL banks.
	OptoTTLDevice uint8
	// InputDriver is InputsGpiocdev, InputsPeriph or InputsNone.
	InputDriver string
	// InputChip is the gpiocdev chip name.
	InputChip string
	// InputLines are gpiocdev line offsets, in input bank order.
	InputLines []int
	// InputPins are periph pin names, in input bank order.
	InputPins []string
}

var errUnknownBackend = errors.New("unknown io backend")

// Open builds the backend described by opts.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendMemory:
		inputs := max(len(opts.InputLines), len(opts.InputPins))
		if inputs == 0 {
			inputs = defaultMemoryInputs
		}

		return NewMemory(DefaultLayout(inputs)), nil
	case BackendExpander:
		return openBoard(opts)
	default:
		return nil, fmt.Errorf("%q: %w", opts.Backend, errUnknownBackend)
	}
}

// openBoard opens the three expanders and the input lines.
func openBoard(opts Options) (*Board, error) {
	var opened []Expander

	closeAll := func() {
		for _, e := range opened {
			_ = e.Close()
		}
	}

	open := func(dev uint8) (Expander, error) {
		e, err := OpenMCP23017(opts.I2CBus, dev)
		if err != nil {
			closeAll()

			return nil, err
		}

		opened = append(opened, e)

		return e, nil
	}

	mosfets, err := open(opts.MosfetDevice)
	if err != nil {
		return nil, err
	}

	relays, err := open(opts.RelayDevice)
	if err != nil {
		return nil, err
	}

	optoTTL, err := open(opts.OptoTTLDevice)
	if err != nil {
		return nil, err
	}

	inputs, err := openInputs(opts)
	if err != nil {
		closeAll()

		return nil, err
	}

	board, err := NewBoard(map[relay.IOClass]Expander{
		relay.Mosfet: mosfets,
		relay.Relay:  relays,
		relay.Opto:   optoTTL,
		relay.TTL:    optoTTL,
	}, inputs)
	if err != nil {
		closeAll()

		return nil, err
	}

	return board, nil
}

// openInputs opens the configured input line driver.
//
//nolint:ireturn // The driver is selected at runtime.
func openInputs(opts Options) (InputLines, error) {
	switch opts.InputDriver {
	case "", InputsNone:
		return nil, nil
	case InputsGpiocdev:
		return OpenGpiocdevLines(opts.InputChip, opts.InputLines)
	case InputsPeriph:
		return OpenPeriphLines(opts.InputPins)
	default:
		return nil, fmt.Errorf("input driver %q: %w", opts.InputDriver, errUnknownBackend)
	}
}
