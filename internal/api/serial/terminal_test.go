package serial

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

type recordingDispatcher struct {
	commands []string
}

func (r *recordingDispatcher) Execute(_ context.Context, command string) dispatch.Result {
	r.commands = append(r.commands, command)

	return dispatch.OK(map[string]any{"command": command})
}

// port joins a scripted input with a captured output.
type port struct {
	io.Reader
	io.Writer
}

func serve(t *testing.T, input string, echo bool) ([]string, string) {
	t.Helper()

	dispatcher := new(recordingDispatcher)
	output := new(bytes.Buffer)

	terminal := New(port{Reader: strings.NewReader(input), Writer: output}, dispatcher, echo)
	require.NoError(t, terminal.Serve(context.Background()))

	return dispatcher.commands, output.String()
}

// TestTerminal_LineDiscipline covers submit, erase, carriage return and the length cap.
func TestTerminal_LineDiscipline(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", MaxLineLength+5)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "single", input: "BUT/ant/A\n", want: []string{"BUT/ant/A"}},
		{name: "crlf", input: "INF\r\nCFG\r\n", want: []string{"INF", "CFG"}},
		{name: "backspace", input: "BUT/ant/X\bA\n", want: []string{"BUT/ant/A"}},
		{name: "backspace on empty", input: "\b\bINF\n", want: []string{"INF"}},
		{name: "empty lines", input: "\n\r\n\n", want: nil},
		{name: "capped", input: long + "\nINF\n", want: []string{long[:MaxLineLength], "INF"}},
		{name: "unterminated", input: "INF", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			commands, _ := serve(t, tt.input, false)
			require.Equal(t, tt.want, commands)
		})
	}
}

// TestTerminal_Results writes one JSON line per command.
func TestTerminal_Results(t *testing.T) {
	t.Parallel()

	_, output := serve(t, "INF\nBUT\n", false)

	lines := strings.Split(strings.TrimSuffix(output, "\r\n"), "\r\n")
	require.Len(t, lines, 2)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	require.Equal(t, "BUT", decoded["command"])
	require.Equal(t, "OK", decoded["msg"])
}

// TestTerminal_Echo mirrors typed characters and erasures.
func TestTerminal_Echo(t *testing.T) {
	t.Parallel()

	_, output := serve(t, "AB\b\r", true)
	require.Equal(t, "AB\b \b\r", output)

	_, output = serve(t, "\n", true)
	require.Equal(t, "\r\n", output)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device unplugged")
}

// TestTerminal_ReadError reports port failures unless the context is done.
func TestTerminal_ReadError(t *testing.T) {
	t.Parallel()

	terminal := New(port{Reader: failingReader{}, Writer: io.Discard}, new(recordingDispatcher), false)
	require.ErrorContains(t, terminal.Serve(context.Background()), "device unplugged")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, terminal.Serve(ctx))
}
