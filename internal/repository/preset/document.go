package preset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/logger"
)

// Document is one named preset source.
type Document struct {
	// Name identifies the document in errors and status reports.
	Name string
	// Data is the TOML text.
	Data []byte
}

// document is the TOML shape of a preset source.
type document struct {
	// Version is informational.
	Version string `toml:"version"`
	// Pins is the [[pin]] array.
	Pins []pinEntry `toml:"pin"`
	// Buttons maps group names to button arrays.
	Buttons map[string][]buttonEntry `toml:"buttons"`
}

// pinEntry is one [[pin]] element.
type pinEntry struct {
	// Name is the display name.
	Name string `toml:"name"`
	// Control is the control string, for example "RL3" or "INP1".
	Control string `toml:"antctrl"`
	// Schematic is the schematic alias.
	Schematic string `toml:"sch"`
}

// buttonEntry is one element of a [buttons] group array.
type buttonEntry struct {
	// Name identifies the button.
	Name string `toml:"name"`
	// Pins are the pin names or aliases energized by the button.
	Pins []string `toml:"pins"`
	// DisableOnLow are pins deactivating the button while low.
	DisableOnLow []string `toml:"disable_on_low"`
	// DisableOnHigh are pins deactivating the button while high.
	DisableOnHigh []string `toml:"disable_on_high"`
}

var (
	// errMissingField is returned for a pin or button entry without a required key.
	errMissingField = errors.New("missing required field")
	// errDuplicateButton is returned when a group declares a button name twice.
	errDuplicateButton = errors.New("duplicate button")
	// errDuplicateGroup is returned when two documents declare the same group.
	errDuplicateGroup = errors.New("button group declared twice")
	// errNoDocuments is returned by Parse without input.
	errNoDocuments = errors.New("no preset documents")
)

// Parse builds a fresh snapshot from the documents, applied in order.
// The snapshot source is the name of the last document.
func Parse(ctx context.Context, docs ...Document) (*relay.Snapshot, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %w", relay.ErrParse, errNoDocuments)
	}

	snapshot := relay.NewSnapshot(docs[len(docs)-1].Name)

	for _, doc := range docs {
		if err := apply(snapshot, doc); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", doc.Name, relay.ErrParse, err)
		}
	}

	for _, name := range snapshot.Duplicates() {
		logger.WarnKV(ctx, "Pin name is not unique, first match wins",
			"name", name,
			"source", snapshot.Source,
		)
	}

	for _, name := range snapshot.DuplicateButtons() {
		logger.WarnKV(ctx, "Button name is not unique, BUT/<button> addresses the first group",
			"button", name,
			"source", snapshot.Source,
		)
	}

	snapshot.Valid = true

	logger.InfoKV(ctx, "Preset loaded",
		"source", snapshot.Source,
		"pins", snapshot.PinCount(),
		"buttons", snapshot.ButtonCount(),
	)

	return snapshot, nil
}

// apply decodes one document and adds its pins, then its buttons.
func apply(snapshot *relay.Snapshot, doc Document) error {
	var parsed document

	decoder := toml.NewDecoder(bytes.NewReader(doc.Data))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&parsed); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if err := applyPins(snapshot, parsed.Pins); err != nil {
		return err
	}

	return applyButtons(snapshot, parsed.Buttons)
}

// applyPins registers the [[pin]] entries.
func applyPins(snapshot *relay.Snapshot, entries []pinEntry) error {
	for i, entry := range entries {
		switch {
		case entry.Name == "":
			return fmt.Errorf("pin #%d: %w: name", i+1, errMissingField)
		case entry.Control == "":
			return fmt.Errorf("pin %q: %w: antctrl", entry.Name, errMissingField)
		case entry.Schematic == "":
			return fmt.Errorf("pin %q: %w: sch", entry.Name, errMissingField)
		}

		pin, err := relay.NewPin(entry.Name, entry.Control, entry.Schematic)
		if err != nil {
			return err
		}

		snapshot.AddPin(pin)
	}

	return nil
}

// applyButtons registers the [buttons] groups in name order, attaching guards.
func applyButtons(snapshot *relay.Snapshot, groups map[string][]buttonEntry) error {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, groupName := range names {
		if _, err := snapshot.Group(groupName); err == nil {
			return fmt.Errorf("%q: %w", groupName, errDuplicateGroup)
		}

		group := snapshot.AddGroup(groupName)

		for i, entry := range groups[groupName] {
			if err := applyButton(snapshot, group, i, entry); err != nil {
				return fmt.Errorf("group %q: %w", groupName, err)
			}
		}
	}

	return nil
}

// applyButton validates one button entry and appends it to the group.
func applyButton(snapshot *relay.Snapshot, group *relay.Group, position int, entry buttonEntry) error {
	switch {
	case entry.Name == "":
		return fmt.Errorf("button #%d: %w: name", position+1, errMissingField)
	case entry.Pins == nil:
		return fmt.Errorf("button %q: %w: pins", entry.Name, errMissingField)
	}

	if _, exists := group.Button(entry.Name); exists {
		return fmt.Errorf("%q: %w", entry.Name, errDuplicateButton)
	}

	if _, err := snapshot.ResolvePins(entry.Pins); err != nil {
		return fmt.Errorf("button %q: %w", entry.Name, err)
	}

	for _, pinName := range entry.DisableOnLow {
		if err := snapshot.AddGuard(pinName, relay.Guard{OnHigh: false, Group: group.Name, Button: entry.Name}); err != nil {
			return fmt.Errorf("button %q disable_on_low: %w", entry.Name, err)
		}
	}

	for _, pinName := range entry.DisableOnHigh {
		if err := snapshot.AddGuard(pinName, relay.Guard{OnHigh: true, Group: group.Name, Button: entry.Name}); err != nil {
			return fmt.Errorf("button %q disable_on_high: %w", entry.Name, err)
		}
	}

	group.Buttons = append(group.Buttons, relay.Button{
		Name: entry.Name,
		Pins: slices.Clone(entry.Pins),
	})

	return nil
}
