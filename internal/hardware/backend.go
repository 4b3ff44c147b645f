package hardware

import (
	"errors"
	"fmt"

	"github.com/oshokin/ant-controller/internal/domain/relay"
)

// Backend is the physical read/write surface of the board.
type Backend interface {
	// ReadPin returns the level of one line.
	ReadPin(class relay.IOClass, index int) (bool, error)
	// WritePin drives one output line.
	WritePin(class relay.IOClass, index int, level bool) error
	// ReadBits returns the bank levels, one bit per index.
	ReadBits(class relay.IOClass) (uint16, error)
	// WriteBits drives a whole output bank at once.
	WriteBits(class relay.IOClass, bits uint16) error
	// Layout describes the banks the backend serves.
	Layout() Layout
	// Close releases the hardware and leaves outputs low.
	Close() error
}

var (
	// ErrUnknownBank is returned for classes absent from the layout.
	ErrUnknownBank = errors.New("bank not present")
	// ErrOutOfRange is returned for indexes or bit patterns beyond the bank width.
	ErrOutOfRange = errors.New("out of range")
	// ErrReadOnly is returned when writing to an input bank.
	ErrReadOnly = errors.New("bank is read only")
)

// bankKind tags the Bank variant.
type bankKind uint8

const (
	outputKind bankKind = iota
	inputKind
)

// maxBankWidth is the width of one expander port pair.
const maxBankWidth = 16

// Bank is a closed variant: Output{class, count, offset} or Input{class, count}.
type Bank struct {
	// Class is the I/O class served by the bank.
	Class relay.IOClass
	// Count is the number of lines in the bank.
	Count int
	// Offset is the first expander pin of an output bank; zero for inputs.
	Offset int

	kind bankKind
}

// OutputBank describes a write capable bank.
func OutputBank(class relay.IOClass, count, offset int) Bank {
	return Bank{Class: class, Count: count, Offset: offset, kind: outputKind}
}

// InputBank describes a read only bank.
func InputBank(class relay.IOClass, count int) Bank {
	return Bank{Class: class, Count: count, kind: inputKind}
}

// IsOutput reports whether the bank can be written.
func (b Bank) IsOutput() bool {
	return b.kind == outputKind
}

// Kind returns "output" or "input".
func (b Bank) Kind() string {
	switch b.kind {
	case outputKind:
		return "output"
	case inputKind:
		return "input"
	default:
		return "unknown"
	}
}

// Mask has one bit set per line of the bank.
func (b Bank) Mask() uint16 {
	if b.Count >= maxBankWidth {
		return 0xFFFF
	}

	return uint16(1)<<b.Count - 1
}

// checkIndex validates a 0-based line index.
func (b Bank) checkIndex(index int) error {
	if index < 0 || index >= b.Count {
		return fmt.Errorf("%s index %d of %d: %w", b.Class.Tag(), index, b.Count, ErrOutOfRange)
	}

	return nil
}

// checkWrite validates a write of bits on the bank.
func (b Bank) checkWrite(bits uint16) error {
	switch b.kind {
	case outputKind:
		if bits&^b.Mask() != 0 {
			return fmt.Errorf("%s bits %#04x exceed %#04x: %w", b.Class.Tag(), bits, b.Mask(), ErrOutOfRange)
		}

		return nil
	case inputKind:
		return fmt.Errorf("%s: %w", b.Class.Tag(), ErrReadOnly)
	default:
		return fmt.Errorf("%s: %w", b.Class.Tag(), ErrUnknownBank)
	}
}

// Layout is the set of banks of a board.
type Layout []Bank

// Bank returns the bank serving the class.
func (l Layout) Bank(class relay.IOClass) (Bank, error) {
	for _, b := range l {
		if b.Class == class {
			return b, nil
		}
	}

	return Bank{}, fmt.Errorf("%s: %w", class, ErrUnknownBank)
}

// DefaultLayout is the antenna controller board: MOSFETs and relays on their
// own expanders, opto and TTL outputs sharing the third one, plus inputs.
func DefaultLayout(inputs int) Layout {
	return Layout{
		OutputBank(relay.Mosfet, 16, 0),
		OutputBank(relay.Relay, 15, 0),
		OutputBank(relay.Opto, 8, 8),
		OutputBank(relay.TTL, 8, 0),
		InputBank(relay.Input, inputs),
	}
}

// ResetOutputs drives every output bank of the backend low.
func ResetOutputs(b Backend) error {
	var errs []error

	for _, bank := range b.Layout() {
		if !bank.IsOutput() {
			continue
		}

		if err := b.WriteBits(bank.Class, 0); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
