package hardware

import (
	"sync"

	"github.com/oshokin/ant-controller/internal/domain/relay"
)

// Write records one pin write performed through a Memory backend.
type Write struct {
	// Pin is the written line.
	Pin relay.PinID
	// Level is the written level.
	Level bool
}

// Memory is a Backend keeping every bank in RAM.
// It backs bench runs without hardware and all engine tests.
type Memory struct {
	// layout describes the simulated banks.
	layout Layout
	// levels holds one bitfield per class.
	levels map[relay.IOClass]uint16
	// writes logs every line changed by WritePin or WriteBits, in order.
	writes []Write
	// mu guards levels and writes.
	mu sync.Mutex
}

// NewMemory returns a Memory backend with every line low.
func NewMemory(layout Layout) *Memory {
	return &Memory{
		layout: layout,
		levels: make(map[relay.IOClass]uint16, len(layout)),
	}
}

// ReadPin returns the stored level of a line.
func (m *Memory) ReadPin(class relay.IOClass, index int) (bool, error) {
	bank, err := m.layout.Bank(class)
	if err != nil {
		return false, err
	}

	if err = bank.checkIndex(index); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.levels[class]&(1<<index) != 0, nil
}

// WritePin stores the level of an output line.
func (m *Memory) WritePin(class relay.IOClass, index int, level bool) error {
	bank, err := m.layout.Bank(class)
	if err != nil {
		return err
	}

	if err = bank.checkIndex(index); err != nil {
		return err
	}

	if err = bank.checkWrite(0); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(class, index, level)
	m.writes = append(m.writes, Write{Pin: relay.PinID{Class: class, Index: index}, Level: level})

	return nil
}

// ReadBits returns the stored bank bitfield.
func (m *Memory) ReadBits(class relay.IOClass) (uint16, error) {
	if _, err := m.layout.Bank(class); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.levels[class], nil
}

// WriteBits replaces an output bank bitfield. Every line whose level
// changes is logged as one Write, lowest index first.
func (m *Memory) WriteBits(class relay.IOClass, bits uint16) error {
	bank, err := m.layout.Bank(class)
	if err != nil {
		return err
	}

	if err = bank.checkWrite(bits); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	changed := m.levels[class] ^ bits

	for index := range bank.Count {
		if changed&(1<<index) == 0 {
			continue
		}

		m.writes = append(m.writes, Write{
			Pin:   relay.PinID{Class: class, Index: index},
			Level: bits&(1<<index) != 0,
		})
	}

	m.levels[class] = bits

	return nil
}

// Layout returns the simulated banks.
func (m *Memory) Layout() Layout {
	return m.layout
}

// Close drives outputs low.
func (m *Memory) Close() error {
	return ResetOutputs(m)
}

// Force sets a line level regardless of its direction, simulating an
// external event such as an input changing or a relay being forced.
func (m *Memory) Force(class relay.IOClass, index int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(class, index, level)
}

// Writes returns a copy of the pin write log.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Write(nil), m.writes...)
}

// ResetWrites clears the pin write log.
func (m *Memory) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes = nil
}

// set flips one bit; the caller holds mu.
func (m *Memory) set(class relay.IOClass, index int, level bool) {
	if level {
		m.levels[class] |= 1 << index
	} else {
		m.levels[class] &^= 1 << index
	}
}
