package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"

	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

// MaxLineLength is the longest command the terminal accepts.
const MaxLineLength = 40

const (
	keyBackspace = '\b'
	keyReturn    = '\r'
	keyNewline   = '\n'
)

// eraseSequence rubs out one echoed character.
var eraseSequence = []byte("\b \b")

// Dispatcher executes terminal commands.
type Dispatcher interface {
	Execute(ctx context.Context, command string) dispatch.Result
}

// Open opens a serial device in blocking mode.
func Open(device string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name: device,
		Baud: baud,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}

	return port, nil
}

// Terminal serves commands typed on a port.
type Terminal struct {
	// port is the serial line.
	port io.ReadWriter
	// dispatcher executes submitted lines.
	dispatcher Dispatcher
	// echo writes accepted characters back.
	echo bool
}

// New creates a Terminal.
func New(port io.ReadWriter, dispatcher Dispatcher, echo bool) *Terminal {
	return &Terminal{
		port:       port,
		dispatcher: dispatcher,
		echo:       echo,
	}
}

// Serve reads the port until it is exhausted, closed or ctx is done.
// Close the port to unblock a pending read.
func (t *Terminal) Serve(ctx context.Context) error {
	ctx = logger.WithName(ctx, "serial")
	reader := bufio.NewReader(t.port)
	line := make([]byte, 0, MaxLineLength)

	for {
		if ctx.Err() != nil {
			return nil
		}

		c, err := reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("read serial: %w", err)
		}

		switch c {
		case keyReturn:
			err = t.write([]byte{keyReturn})
		case keyBackspace:
			if len(line) > 0 {
				line = line[:len(line)-1]
				err = t.write(eraseSequence)
			}
		case keyNewline:
			err = t.submit(ctx, string(line))
			line = line[:0]
		default:
			if len(line) < MaxLineLength {
				line = append(line, c)
				err = t.write([]byte{c})
			}
		}

		if err != nil {
			return err
		}
	}
}

// submit executes one line and writes its result.
func (t *Terminal) submit(ctx context.Context, command string) error {
	if t.echo {
		if _, err := t.port.Write([]byte("\r\n")); err != nil {
			return fmt.Errorf("write serial: %w", err)
		}
	}

	if command == "" {
		return nil
	}

	result := t.dispatcher.Execute(ctx, command)

	payload, err := result.MarshalJSON()
	if err != nil {
		logger.ErrorKV(ctx, "Result encoding failed", "command", command, "error", err)

		return nil
	}

	if _, err = t.port.Write(append(payload, '\r', '\n')); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}

	return nil
}

// write echoes bytes when echo is on.
func (t *Terminal) write(p []byte) error {
	if !t.echo {
		return nil
	}

	if _, err := t.port.Write(p); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}

	return nil
}
