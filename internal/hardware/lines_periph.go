package hardware

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphLines reads input lines through periph.io, addressed by pin name.
type PeriphLines struct {
	pins []gpio.PinIO
}

var errPeriphPin = errors.New("gpio pin not registered")

// OpenPeriphLines initialises the periph host and configures the named
// pins (for example "GPIO17") as pulled-down inputs.
func OpenPeriphLines(names []string) (*PeriphLines, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	result := &PeriphLines{pins: make([]gpio.PinIO, 0, len(names))}

	for _, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%s: %w", name, errPeriphPin)
		}

		if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure %s: %w", name, err)
		}

		result.pins = append(result.pins, p)
	}

	return result, nil
}

// Count returns the number of configured pins.
func (p *PeriphLines) Count() int {
	return len(p.pins)
}

// Read returns true when the pin is high.
func (p *PeriphLines) Read(index int) (bool, error) {
	return p.pins[index].Read() == gpio.High, nil
}

// Close leaves the pins as inputs; periph has nothing to release.
func (p *PeriphLines) Close() error {
	return nil
}
