//go:build linux

package hardware

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GpiocdevLines reads input lines through the Linux GPIO character device.
type GpiocdevLines struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// OpenGpiocdevLines requests the given line offsets of chip as inputs with
// pull-down. The offset order defines the input bank indexes.
func OpenGpiocdevLines(chipName string, offsets []int) (*GpiocdevLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	result := &GpiocdevLines{chip: chip}

	for _, offset := range offsets {
		line, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			_ = result.Close()

			return nil, fmt.Errorf("request input line %d: %w", offset, err)
		}

		result.lines = append(result.lines, line)
	}

	return result, nil
}

// Count returns the number of requested lines.
func (g *GpiocdevLines) Count() int {
	return len(g.lines)
}

// Read returns true when the line is active.
func (g *GpiocdevLines) Read(index int) (bool, error) {
	value, err := g.lines[index].Value()
	if err != nil {
		return false, fmt.Errorf("read input line %d: %w", index, err)
	}

	return value != 0, nil
}

// Close releases every line and the chip.
func (g *GpiocdevLines) Close() error {
	var errs []error

	for _, line := range g.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}

	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
