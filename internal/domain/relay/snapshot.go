package relay

import (
	"fmt"
	"slices"
	"sort"
)

// GuardFilter narrows GatherGuards. Zero value matches every guard.
type GuardFilter struct {
	// InputOnly keeps only pins of the Input class.
	InputOnly bool
	// Pin keeps only the pin with this name or alias.
	Pin string
	// Group keeps only guards protecting a button of this group.
	Group string
	// Button keeps only guards protecting this button.
	Button string
}

// GuardRef pairs a guard with a copy of the pin carrying it.
type GuardRef struct {
	// Pin is the guarding pin.
	Pin Pin
	// Guard is the interlock relation.
	Guard Guard
}

// Snapshot is a complete configuration: the Pin Registry and the Button Catalog.
// It is not safe for concurrent use; the engine serializes access.
type Snapshot struct {
	// Source names the configuration documents the snapshot was loaded from.
	Source string
	// Valid is set once the snapshot loaded without error.
	Valid bool

	// pins is the registry arena, in registration order.
	pins []Pin
	// groups maps group names to groups.
	groups map[string]*Group
}

// NewSnapshot returns an empty, not yet valid snapshot.
func NewSnapshot(source string) *Snapshot {
	return &Snapshot{
		Source: source,
		groups: make(map[string]*Group),
	}
}

// AddPin registers a pin. Duplicated names are accepted; see Duplicates.
func (s *Snapshot) AddPin(pin Pin) {
	s.pins = append(s.pins, pin.clone())
}

// Pins returns a copy of the registry in registration order.
func (s *Snapshot) Pins() []Pin {
	result := make([]Pin, 0, len(s.pins))
	for i := range s.pins {
		result = append(result, s.pins[i].clone())
	}

	return result
}

// PinCount returns the number of registered pins.
func (s *Snapshot) PinCount() int {
	return len(s.pins)
}

// Lookup returns the pin matching nameOrAlias. Without strict the first
// match wins; with strict more than one match fails with ErrAmbiguous.
func (s *Snapshot) Lookup(nameOrAlias string, strict bool) (Pin, error) {
	p, err := s.lookup(nameOrAlias, strict)
	if err != nil {
		return Pin{}, err
	}

	return p.clone(), nil
}

// lookup returns a pointer into the arena, valid until the next AddPin.
func (s *Snapshot) lookup(nameOrAlias string, strict bool) (*Pin, error) {
	var found *Pin

	for i := range s.pins {
		if !s.pins[i].Matches(nameOrAlias) {
			continue
		}

		if !strict {
			return &s.pins[i], nil
		}

		if found != nil {
			return nil, fmt.Errorf("pin %q is not unique: %w", nameOrAlias, ErrAmbiguous)
		}

		found = &s.pins[i]
	}

	if found == nil {
		return nil, fmt.Errorf("pin %q: %w", nameOrAlias, ErrNotFound)
	}

	return found, nil
}

// Duplicates lists every name or alias that resolves to more than one pin.
func (s *Snapshot) Duplicates() []string {
	seen := make(map[string]int, len(s.pins)*2)

	for i := range s.pins {
		seen[s.pins[i].Name]++

		if s.pins[i].Alias != "" && s.pins[i].Alias != s.pins[i].Name {
			seen[s.pins[i].Alias]++
		}
	}

	var result []string

	for key, count := range seen {
		if count > 1 {
			result = append(result, key)
		}
	}

	sort.Strings(result)

	return result
}

// AddGuard appends a guard onto the pin resolved from nameOrAlias.
func (s *Snapshot) AddGuard(nameOrAlias string, guard Guard) error {
	p, err := s.lookup(nameOrAlias, false)
	if err != nil {
		return err
	}

	p.Guards = append(p.Guards, guard)

	return nil
}

// GatherGuards returns every guard relation accepted by the filter,
// in registry order.
func (s *Snapshot) GatherGuards(filter GuardFilter) []GuardRef {
	var result []GuardRef

	for i := range s.pins {
		p := &s.pins[i]

		if filter.InputOnly && p.Class != Input {
			continue
		}

		if filter.Pin != "" && !p.Matches(filter.Pin) {
			continue
		}

		for _, g := range p.Guards {
			if filter.Button != "" && g.Button != filter.Button {
				continue
			}

			if filter.Group != "" && g.Group != "" && g.Group != filter.Group {
				continue
			}

			result = append(result, GuardRef{Pin: p.clone(), Guard: g})
		}
	}

	return result
}

// ResolvePins resolves names to pins, dropping entries that point at an
// already resolved physical line.
func (s *Snapshot) ResolvePins(names []string) ([]Pin, error) {
	var (
		result = make([]Pin, 0, len(names))
		seen   = make(map[PinID]struct{}, len(names))
	)

	for _, name := range names {
		p, err := s.lookup(name, false)
		if err != nil {
			return nil, err
		}

		if _, ok := seen[p.ID()]; ok {
			continue
		}

		seen[p.ID()] = struct{}{}

		result = append(result, p.clone())
	}

	return result, nil
}

// AddGroup creates an empty group, or returns the existing one.
func (s *Snapshot) AddGroup(name string) *Group {
	if g, ok := s.groups[name]; ok {
		return g
	}

	g := NewGroup(name)
	s.groups[name] = g

	return g
}

// Group returns the named group.
func (s *Snapshot) Group(name string) (*Group, error) {
	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("button group %q: %w", name, ErrNotFound)
	}

	return g, nil
}

// GroupNames returns the group names in lexical order.
func (s *Snapshot) GroupNames() []string {
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// ButtonCount returns the number of buttons over all groups.
func (s *Snapshot) ButtonCount() int {
	count := 0
	for _, g := range s.groups {
		count += len(g.Buttons)
	}

	return count
}

// FindButton returns the first group, in GroupNames order, owning a button
// with the given name.
func (s *Snapshot) FindButton(name string) (*Group, Button, error) {
	for _, groupName := range s.GroupNames() {
		g := s.groups[groupName]
		if b, ok := g.Button(name); ok {
			return g, b, nil
		}
	}

	return nil, Button{}, fmt.Errorf("button %q: %w", name, ErrNotFound)
}

// GuardedButton returns the group and button protected by guard.
func (s *Snapshot) GuardedButton(guard Guard) (*Group, Button, error) {
	if guard.Group == "" {
		return s.FindButton(guard.Button)
	}

	g, err := s.Group(guard.Group)
	if err != nil {
		return nil, Button{}, err
	}

	b, ok := g.Button(guard.Button)
	if !ok {
		return nil, Button{}, fmt.Errorf("button %q in group %q: %w", guard.Button, guard.Group, ErrNotFound)
	}

	return g, b, nil
}

// DuplicateButtons lists every button name owned by more than one group.
func (s *Snapshot) DuplicateButtons() []string {
	seen := make(map[string]int)

	for _, g := range s.groups {
		for _, b := range g.Buttons {
			seen[b.Name]++
		}
	}

	var result []string

	for name, count := range seen {
		if count > 1 {
			result = append(result, name)
		}
	}

	sort.Strings(result)

	return result
}

// GroupPins returns the union of the pins of every button in the group,
// deduplicated by physical identity.
func (s *Snapshot) GroupPins(name string) ([]Pin, error) {
	g, err := s.Group(name)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, b := range g.Buttons {
		names = append(names, b.Pins...)
	}

	return s.ResolvePins(names)
}

// Selections maps every group name to its current selection.
func (s *Snapshot) Selections() map[string]string {
	result := make(map[string]string, len(s.groups))
	for name, g := range s.groups {
		result[name] = g.Current
	}

	return result
}
