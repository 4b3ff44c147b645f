package hardware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ant-controller/internal/domain/relay"
)

var errTestBus = errors.New("i2c nack")

// fakeExpander records pin levels of a simulated expander.
type fakeExpander struct {
	// pins holds the latch of every expander pin.
	pins [16]bool
	// failSet makes Set return an error.
	failSet bool
	// closed counts Close calls.
	closed int
}

// Set stores the level of one pin.
func (f *fakeExpander) Set(pin uint8, level bool) error {
	if f.failSet {
		return errTestBus
	}

	f.pins[pin] = level

	return nil
}

// Get returns the stored level of one pin.
func (f *fakeExpander) Get(pin uint8) (bool, error) {
	return f.pins[pin], nil
}

// Close counts the call.
func (f *fakeExpander) Close() error {
	f.closed++

	return nil
}

// fakeLines serves scripted input levels.
type fakeLines struct {
	// levels are the input line levels.
	levels []bool
	// closed tracks Close.
	closed bool
}

// Count returns the number of lines.
func (f *fakeLines) Count() int { return len(f.levels) }

// Read returns the scripted level.
func (f *fakeLines) Read(index int) (bool, error) { return f.levels[index], nil }

// Close marks the lines closed.
func (f *fakeLines) Close() error {
	f.closed = true

	return nil
}

// newTestBoard wires three fake expanders the way the real board does.
func newTestBoard(t *testing.T) (*Board, *fakeExpander, *fakeLines) {
	t.Helper()

	shared := new(fakeExpander)
	lines := &fakeLines{levels: []bool{false, true, false}}

	board, err := NewBoard(map[relay.IOClass]Expander{
		relay.Mosfet: new(fakeExpander),
		relay.Relay:  new(fakeExpander),
		relay.Opto:   shared,
		relay.TTL:    shared,
	}, lines)
	require.NoError(t, err)

	return board, shared, lines
}

// TestBoard_SharedExpanderOffsets verifies opto and TTL banks land on separate halves.
func TestBoard_SharedExpanderOffsets(t *testing.T) {
	t.Parallel()

	board, shared, _ := newTestBoard(t)

	require.NoError(t, board.WritePin(relay.Opto, 0, true))
	require.NoError(t, board.WritePin(relay.TTL, 0, true))
	require.True(t, shared.pins[8])
	require.True(t, shared.pins[0])

	require.NoError(t, board.WriteBits(relay.Opto, 0b11))

	bits, err := board.ReadBits(relay.Opto)
	require.NoError(t, err)
	require.Equal(t, uint16(0b11), bits)

	bits, err = board.ReadBits(relay.TTL)
	require.NoError(t, err)
	require.Equal(t, uint16(0b1), bits)
}

// TestBoard_Inputs reads the input bank and rejects writes to it.
func TestBoard_Inputs(t *testing.T) {
	t.Parallel()

	board, _, lines := newTestBoard(t)

	level, err := board.ReadPin(relay.Input, 1)
	require.NoError(t, err)
	require.True(t, level)

	bits, err := board.ReadBits(relay.Input)
	require.NoError(t, err)
	require.Equal(t, uint16(0b10), bits)

	require.ErrorIs(t, board.WritePin(relay.Input, 0, true), ErrReadOnly)
	require.ErrorIs(t, board.WritePin(relay.Relay, 15, true), ErrOutOfRange)

	require.NoError(t, board.Close())
	require.True(t, lines.closed)
}

// TestBoard_CloseOnce ensures shared expanders are closed once and outputs go low.
func TestBoard_CloseOnce(t *testing.T) {
	t.Parallel()

	board, shared, _ := newTestBoard(t)
	require.NoError(t, board.WriteBits(relay.TTL, 0xFF))
	require.NoError(t, board.Close())
	require.Equal(t, 1, shared.closed)
	require.Equal(t, [16]bool{}, shared.pins)
}

// TestBoard_Errors covers missing expanders and bus failures.
func TestBoard_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewBoard(map[relay.IOClass]Expander{relay.Relay: new(fakeExpander)}, nil)
	require.Error(t, err)

	failing := &fakeExpander{failSet: true}
	board, err := NewBoard(map[relay.IOClass]Expander{
		relay.Mosfet: failing,
		relay.Relay:  failing,
		relay.Opto:   failing,
		relay.TTL:    failing,
	}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, board.WritePin(relay.Mosfet, 0, true), errTestBus)

	_, err = board.ReadPin(relay.Input, 0)
	require.ErrorIs(t, err, ErrOutOfRange)
}

// TestOpen_Memory checks the memory backend factory.
func TestOpen_Memory(t *testing.T) {
	t.Parallel()

	backend, err := Open(Options{Backend: BackendMemory, InputLines: []int{4, 5}})
	require.NoError(t, err)

	inputs, err := backend.Layout().Bank(relay.Input)
	require.NoError(t, err)
	require.Equal(t, 2, inputs.Count)

	_, err = Open(Options{Backend: "fpga"})
	require.ErrorIs(t, err, errUnknownBackend)
}
