package relay

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// IOClass is the hardware bank category a pin belongs to.
type IOClass uint8

const (
	// Mosfet is the low-side MOSFET sink bank.
	Mosfet IOClass = iota
	// Relay is the relay bank.
	Relay
	// Opto is the opto-isolated open collector bank.
	Opto
	// TTL is the logic level output bank.
	TTL
	// Input is the bank of physical input lines.
	Input
)

// Classes lists every I/O class in bank order.
//
//nolint:gochecknoglobals // Closed set, read-only.
var Classes = []IOClass{Mosfet, Relay, Opto, TTL, Input}

// controlMarkers maps control-string substrings to classes, in match precedence.
//
//nolint:gochecknoglobals // Closed set, read-only.
var controlMarkers = []struct {
	marker string
	class  IOClass
}{
	{"SINK", Mosfet},
	{"RL", Relay},
	{"OC", Opto},
	{"TTL", TTL},
	{"INP", Input},
}

// String returns the long class name.
func (c IOClass) String() string {
	switch c {
	case Mosfet:
		return "MOSFET"
	case Relay:
		return "RELAY"
	case Opto:
		return "OPTO"
	case TTL:
		return "TTL"
	case Input:
		return "INPUT"
	default:
		return "IOClass(" + strconv.Itoa(int(c)) + ")"
	}
}

// Tag returns the three letter command tag of the class.
func (c IOClass) Tag() string {
	switch c {
	case Mosfet:
		return "MOS"
	case Relay:
		return "REL"
	case Opto:
		return "OPT"
	case TTL:
		return "TTL"
	case Input:
		return "INP"
	default:
		return ""
	}
}

// IsOutput reports whether pins of the class can be driven.
func (c IOClass) IsOutput() bool {
	return c != Input
}

// ClassByTag resolves a command tag such as "REL" to its class.
func ClassByTag(tag string) (IOClass, bool) {
	for _, c := range Classes {
		if c.Tag() == tag {
			return c, true
		}
	}

	return 0, false
}

// ParseControlString derives the I/O class and the 0-based bank index from
// a board control string such as "RL3" or "SINK12".
// The schematic numbering is 1-based.
func ParseControlString(control string) (IOClass, int, error) {
	class, found := IOClass(0), false

	for _, m := range controlMarkers {
		if strings.Contains(control, m.marker) {
			class, found = m.class, true

			break
		}
	}

	if !found {
		return 0, 0, fmt.Errorf("could not parse pin type from %q: %w", control, ErrParse)
	}

	var digits strings.Builder

	for _, r := range control {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	if digits.Len() == 0 {
		return 0, 0, fmt.Errorf("could not parse pin number from %q: %w", control, ErrParse)
	}

	number, err := strconv.Atoi(digits.String())
	if err != nil || number < 1 {
		return 0, 0, fmt.Errorf("invalid pin number in %q: %w", control, ErrParse)
	}

	return class, number - 1, nil
}

// PinID identifies a physical line. Two registry entries with the same
// PinID drive the same hardware.
type PinID struct {
	// Class is the bank the line belongs to.
	Class IOClass
	// Index is the 0-based position inside the bank.
	Index int
}

// String renders the id as "REL[2]".
func (id PinID) String() string {
	return fmt.Sprintf("%s[%d]", id.Class.Tag(), id.Index)
}

// Guard is an interlock: while the owning pin reads OnHigh, Button must not be active.
type Guard struct {
	// OnHigh is the pin level that triggers the guard.
	OnHigh bool
	// Group owns the guarded button. Empty resolves Button in any group.
	Group string
	// Button is the name of the guarded button.
	Button string
}

// Pin is one physical I/O line of the board.
type Pin struct {
	// Name is the display identifier.
	Name string
	// Alias is the schematic designator, an alternate lookup key.
	Alias string
	// Control is the raw control string the class and index were derived from.
	Control string
	// Class is the bank category.
	Class IOClass
	// Index is the 0-based position inside the bank.
	Index int
	// Guards are the interlocks attached to this pin, in configuration order.
	Guards []Guard
}

// NewPin builds a pin from its configuration fields.
func NewPin(name, control, alias string) (Pin, error) {
	class, index, err := ParseControlString(control)
	if err != nil {
		return Pin{}, fmt.Errorf("pin %q: %w", name, err)
	}

	return Pin{
		Name:    name,
		Alias:   alias,
		Control: control,
		Class:   class,
		Index:   index,
	}, nil
}

// ID returns the physical identity of the pin.
func (p *Pin) ID() PinID {
	return PinID{Class: p.Class, Index: p.Index}
}

// Matches reports whether the pin answers to the given name or alias.
func (p *Pin) Matches(nameOrAlias string) bool {
	return p.Name == nameOrAlias || (p.Alias != "" && p.Alias == nameOrAlias)
}

// String renders the pin as "name: REL[2] (sch)".
func (p *Pin) String() string {
	return fmt.Sprintf("%s: %s (%s)", p.Name, p.ID(), p.Alias)
}

// clone copies the pin including its guard list.
func (p *Pin) clone() Pin {
	cloned := *p
	cloned.Guards = append([]Guard(nil), p.Guards...)

	return cloned
}
