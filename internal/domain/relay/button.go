package relay

import "strings"

// Off is the selection of a group with no active button.
const Off = "OFF"

// Button is a named actuation unit energizing a set of pins.
type Button struct {
	// Name identifies the button; unique within its group.
	Name string
	// Pins are pin names or aliases, resolved through the registry on demand.
	Pins []string
}

// String renders the button as "name: [p1 p2]".
func (b Button) String() string {
	return b.Name + ": [" + strings.Join(b.Pins, " ") + "]"
}

// Group is a set of mutually exclusive buttons sharing one selection.
type Group struct {
	// Name identifies the group.
	Name string
	// Buttons are kept in configuration order.
	Buttons []Button
	// Current is the active button name or Off.
	Current string
}

// NewGroup returns an empty group in the Off state.
func NewGroup(name string) *Group {
	return &Group{
		Name:    name,
		Current: Off,
	}
}

// Button returns the group member with the given name.
func (g *Group) Button(name string) (Button, bool) {
	for _, b := range g.Buttons {
		if b.Name == name {
			return b, true
		}
	}

	return Button{}, false
}

// IsActive reports whether the named button is the current selection.
func (g *Group) IsActive(name string) bool {
	return name != Off && g.Current == name
}
