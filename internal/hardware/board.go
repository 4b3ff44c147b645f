package hardware

import (
	"errors"
	"fmt"

	"github.com/oshokin/ant-controller/internal/domain/relay"
)

// Expander is a 16 line I2C port expander driven pin by pin.
type Expander interface {
	// Set drives one expander pin.
	Set(pin uint8, level bool) error
	// Get reads back one expander pin.
	Get(pin uint8) (bool, error)
	// Close releases the device.
	Close() error
}

// InputLines reads the lines of the input bank.
type InputLines interface {
	// Count returns the number of lines.
	Count() int
	// Read returns the level of the line at index.
	Read(index int) (bool, error)
	// Close releases the lines.
	Close() error
}

// Board is a Backend driving output banks through port expanders and
// reading the input bank from GPIO lines. Several output banks may share
// one expander at different offsets.
type Board struct {
	// layout describes the banks of the board.
	layout Layout
	// expanders maps every output class to the device hosting it.
	expanders map[relay.IOClass]Expander
	// inputs reads the input bank; nil means no input bank.
	inputs InputLines
}

var errNoExpander = errors.New("no expander for output bank")

// NewBoard assembles a Board on the default layout. Every output class must
// have an expander; inputs may be nil.
func NewBoard(expanders map[relay.IOClass]Expander, inputs InputLines) (*Board, error) {
	count := 0
	if inputs != nil {
		count = inputs.Count()
	}

	layout := DefaultLayout(count)

	for _, bank := range layout {
		if !bank.IsOutput() {
			continue
		}

		if expanders[bank.Class] == nil {
			return nil, fmt.Errorf("%s: %w", bank.Class, errNoExpander)
		}
	}

	return &Board{
		layout:    layout,
		expanders: expanders,
		inputs:    inputs,
	}, nil
}

// ReadPin reads an output latch or an input line.
func (b *Board) ReadPin(class relay.IOClass, index int) (bool, error) {
	bank, err := b.layout.Bank(class)
	if err != nil {
		return false, err
	}

	if err = bank.checkIndex(index); err != nil {
		return false, err
	}

	if !bank.IsOutput() {
		return b.inputs.Read(index)
	}

	level, err := b.expanders[class].Get(uint8(index + bank.Offset)) //nolint:gosec // Index is bounded by the bank.
	if err != nil {
		return false, fmt.Errorf("read %s[%d]: %w", class.Tag(), index, err)
	}

	return level, nil
}

// WritePin drives an output line.
func (b *Board) WritePin(class relay.IOClass, index int, level bool) error {
	bank, err := b.layout.Bank(class)
	if err != nil {
		return err
	}

	if err = bank.checkIndex(index); err != nil {
		return err
	}

	if err = bank.checkWrite(0); err != nil {
		return err
	}

	if err = b.expanders[class].Set(uint8(index+bank.Offset), level); err != nil { //nolint:gosec // Bounded.
		return fmt.Errorf("write %s[%d]: %w", class.Tag(), index, err)
	}

	return nil
}

// ReadBits collects the bank levels into a bitfield.
func (b *Board) ReadBits(class relay.IOClass) (uint16, error) {
	bank, err := b.layout.Bank(class)
	if err != nil {
		return 0, err
	}

	var bits uint16

	for i := range bank.Count {
		level, err := b.ReadPin(class, i)
		if err != nil {
			return 0, err
		}

		if level {
			bits |= 1 << i
		}
	}

	return bits, nil
}

// WriteBits drives every line of an output bank.
func (b *Board) WriteBits(class relay.IOClass, bits uint16) error {
	bank, err := b.layout.Bank(class)
	if err != nil {
		return err
	}

	if err = bank.checkWrite(bits); err != nil {
		return err
	}

	for i := range bank.Count {
		if err = b.WritePin(class, i, bits&(1<<i) != 0); err != nil {
			return err
		}
	}

	return nil
}

// Layout returns the board banks.
func (b *Board) Layout() Layout {
	return b.layout
}

// Close drives outputs low and releases every device once.
func (b *Board) Close() error {
	errs := []error{ResetOutputs(b)}

	closed := make(map[Expander]struct{}, len(b.expanders))

	for _, e := range b.expanders {
		if _, ok := closed[e]; ok {
			continue
		}

		closed[e] = struct{}{}

		errs = append(errs, e.Close())
	}

	if b.inputs != nil {
		errs = append(errs, b.inputs.Close())
	}

	return errors.Join(errs...)
}
