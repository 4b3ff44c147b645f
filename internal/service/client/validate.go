package client

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/repository/preset"
)

// Validate parses preset documents in order and prints the resulting
// pin registry and button catalog.
func Validate(ctx context.Context, w io.Writer, files []string) error {
	snapshot, err := preset.Load(ctx, nil, files...)
	if err != nil {
		return err
	}

	printSnapshot(w, snapshot)

	return nil
}

// printSnapshot renders pins with their guards, then groups with their buttons.
func printSnapshot(w io.Writer, snapshot *relay.Snapshot) {
	_, _ = fmt.Fprintf(w, "source: %s\n", snapshot.Source)
	_, _ = fmt.Fprintf(w, "pins (%d):\n", snapshot.PinCount())

	for _, pin := range snapshot.Pins() {
		_, _ = fmt.Fprintf(w, "  %s\n", pin.String())

		for _, guard := range pin.Guards {
			level := "low"
			if guard.OnHigh {
				level = "high"
			}

			_, _ = fmt.Fprintf(w, "    disables %q on %s\n", guard.Group+"/"+guard.Button, level)
		}
	}

	_, _ = fmt.Fprintf(w, "buttons (%d):\n", snapshot.ButtonCount())

	for _, name := range snapshot.GroupNames() {
		group, err := snapshot.Group(name)
		if err != nil {
			continue
		}

		_, _ = fmt.Fprintf(w, "  %s:\n", name)

		for _, button := range group.Buttons {
			_, _ = fmt.Fprintf(w, "    %s: %s\n", button.Name, strings.Join(button.Pins, ", "))
		}
	}

	if duplicates := snapshot.Duplicates(); len(duplicates) > 0 {
		_, _ = fmt.Fprintf(w, "ambiguous names: %s\n", strings.Join(duplicates, ", "))
	}

	if duplicates := snapshot.DuplicateButtons(); len(duplicates) > 0 {
		_, _ = fmt.Fprintf(w, "shared button names: %s\n", strings.Join(duplicates, ", "))
	}
}
