package hardware

import (
	"fmt"

	"github.com/racerxdl/go-mcp23017"
)

// expanderPins is the number of lines of one MCP23017.
const expanderPins = 16

// MCP23017 adapts a racerxdl/go-mcp23017 device to Expander.
type MCP23017 struct {
	device *mcp23017.Device
}

// OpenMCP23017 opens the expander at device number dev (address 0x20+dev)
// on the I2C bus, configures every pin as output and drives it low.
func OpenMCP23017(bus, dev uint8) (*MCP23017, error) {
	device, err := mcp23017.Open(bus, dev)
	if err != nil {
		return nil, fmt.Errorf("open mcp23017 %d on bus %d: %w", dev, bus, err)
	}

	for pin := range uint8(expanderPins) {
		if err = device.PinMode(pin, mcp23017.OUTPUT); err != nil {
			_ = device.Close()

			return nil, fmt.Errorf("configure mcp23017 pin %d: %w", pin, err)
		}

		if err = device.DigitalWrite(pin, mcp23017.PinLevel(false)); err != nil {
			_ = device.Close()

			return nil, fmt.Errorf("reset mcp23017 pin %d: %w", pin, err)
		}
	}

	return &MCP23017{device: device}, nil
}

// Set drives one pin.
func (m *MCP23017) Set(pin uint8, level bool) error {
	return m.device.DigitalWrite(pin, mcp23017.PinLevel(level))
}

// Get reads one pin latch.
func (m *MCP23017) Get(pin uint8) (bool, error) {
	level, err := m.device.DigitalRead(pin)
	if err != nil {
		return false, err
	}

	return bool(level), nil
}

// Close releases the I2C device.
func (m *MCP23017) Close() error {
	return m.device.Close()
}
