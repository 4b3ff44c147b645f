package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/ant-controller/internal/domain/relay"
	"github.com/oshokin/ant-controller/internal/hardware"
	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/service/engine"
)

const (
	// TagButtons routes to the activation engine.
	TagButtons = "BUT"
	// TagInfo returns the status snapshot.
	TagInfo = "INF"
	// TagConfig reports or reloads the preset.
	TagConfig = "CFG"

	// paramBits addresses a whole bank.
	paramBits = "bits"
	// paramReload reloads the preset.
	paramReload = "reload"
	// valueOn energizes a line or a button.
	valueOn = "on"
	// valueOff releases a line or a button.
	valueOff = "off"

	// maxSegments is TAG, PARAM and VALUE.
	maxSegments = 3
)

// Engine is the part of the activation engine the dispatcher drives.
type Engine interface {
	Activate(ctx context.Context, group, button string) error
	Deactivate(ctx context.Context, group string) error
	SetButton(ctx context.Context, button string, on bool) error
	ButtonState(ctx context.Context, button string) (bool, error)
	Selection(ctx context.Context, group string) (string, error)
	ReadPin(ctx context.Context, class relay.IOClass, index int) (bool, error)
	ReadBits(ctx context.Context, class relay.IOClass) (uint16, error)
	WritePin(ctx context.Context, class relay.IOClass, index int, level bool) error
	WriteBits(ctx context.Context, class relay.IOClass, bits uint16) error
	Reload(ctx context.Context, snapshot *relay.Snapshot) error
	Status(ctx context.Context) (engine.Status, error)
	Layout() hardware.Layout
}

// Presets loads a fresh snapshot for CFG/reload.
type Presets interface {
	LoadWithFallback(ctx context.Context) (*relay.Snapshot, error)
}

// Dispatcher executes commands against an engine.
type Dispatcher struct {
	// engine performs the operations.
	engine Engine
	// presets serves reloads; nil disables CFG/reload.
	presets Presets
}

// New creates a Dispatcher.
func New(e Engine, presets Presets) *Dispatcher {
	return &Dispatcher{
		engine:  e,
		presets: presets,
	}
}

// Execute runs one command. It never fails: errors become results.
func (d *Dispatcher) Execute(ctx context.Context, command string) Result {
	segments, err := split(command)
	if err != nil {
		return d.fail(ctx, command, err)
	}

	var result Result

	switch tag, args := segments[0], segments[1:]; tag {
	case TagButtons:
		result = d.buttons(ctx, args)
	case TagInfo:
		if len(args) != 0 {
			return d.fail(ctx, command, fmt.Errorf("%s takes no parameters: %w", TagInfo, ErrMalformed))
		}

		result = d.Status(ctx)
	case TagConfig:
		result = d.config(ctx, args)
	default:
		class, ok := relay.ClassByTag(tag)
		if !ok {
			return d.fail(ctx, command, fmt.Errorf("API call for tag %s: %w", tag, relay.ErrNotFound))
		}

		result = d.io(ctx, class, args)
	}

	if !result.Succeeded() {
		logger.WarnKV(ctx, "Command failed", "command", command, "msg", result.Msg, "retCode", result.RetCode)
	} else {
		logger.DebugKV(ctx, "Command executed", "command", command)
	}

	return result
}

// Status renders the full status snapshot.
func (d *Dispatcher) Status(ctx context.Context) Result {
	status, err := d.engine.Status(ctx)
	if err != nil {
		return Failure(err)
	}

	banks := make(map[string]any, len(status.Banks))
	for _, bank := range status.Banks {
		banks[bank.Class.Tag()] = map[string]any{
			"type":  bank.Class.String(),
			"kind":  bank.Kind,
			"bits":  int(bank.Bits),
			"ioNum": bank.Count,
		}
	}

	return OK(map[string]any{
		"io":      banks,
		"buttons": buttonsField(status.Groups),
		"config":  configField(status),
	})
}

// fail logs and renders a command that could not be routed.
func (d *Dispatcher) fail(ctx context.Context, command string, err error) Result {
	result := Failure(err)

	logger.WarnKV(ctx, "Command rejected", "command", command, "msg", result.Msg, "retCode", result.RetCode)

	return result
}

// buttons handles BUT.
func (d *Dispatcher) buttons(ctx context.Context, args []string) Result {
	switch len(args) {
	case 0:
		return d.withButtons(ctx)
	case 1:
		return d.buttonQuery(ctx, args[0])
	default:
		return d.buttonAction(ctx, args[0], args[1])
	}
}

// buttonQuery answers BUT/<group> or BUT/<button>.
func (d *Dispatcher) buttonQuery(ctx context.Context, name string) Result {
	current, err := d.engine.Selection(ctx, name)
	if err == nil {
		return OK(map[string]any{"group": name, "selection": current})
	}

	if !isNotFound(err) {
		return Failure(err)
	}

	active, err := d.engine.ButtonState(ctx, name)
	if err != nil {
		return Failure(fmt.Errorf("button group or button %q: %w", name, relay.ErrNotFound))
	}

	return OK(map[string]any{"button": name, "active": active})
}

// buttonAction answers BUT/<group>/<button|OFF> and BUT/<button>/on|off.
func (d *Dispatcher) buttonAction(ctx context.Context, name, value string) Result {
	_, err := d.engine.Selection(ctx, name)

	switch {
	case err == nil && value == relay.Off:
		err = d.engine.Deactivate(ctx, name)
	case err == nil:
		err = d.engine.Activate(ctx, name, value)
	case isNotFound(err) && (value == valueOn || value == valueOff):
		err = d.engine.SetButton(ctx, name, value == valueOn)
	case isNotFound(err):
		err = fmt.Errorf("button group %q: %w", name, relay.ErrNotFound)
	}

	if err != nil {
		return Failure(err)
	}

	return d.withButtons(ctx)
}

// withButtons returns OK with the group selections.
func (d *Dispatcher) withButtons(ctx context.Context) Result {
	status, err := d.engine.Status(ctx)
	if err != nil {
		return Failure(err)
	}

	return OK(map[string]any{"buttons": buttonsField(status.Groups)})
}

// config handles CFG.
func (d *Dispatcher) config(ctx context.Context, args []string) Result {
	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == paramReload:
		if err := d.reload(ctx); err != nil {
			return Failure(err)
		}
	default:
		return Failure(fmt.Errorf("%s/%s: %w", TagConfig, strings.Join(args, "/"), ErrMalformed))
	}

	status, err := d.engine.Status(ctx)
	if err != nil {
		return Failure(err)
	}

	return OK(map[string]any{"config": configField(status)})
}

// reload loads presets with the fallback policy and swaps them in.
func (d *Dispatcher) reload(ctx context.Context) error {
	if d.presets == nil {
		return fmt.Errorf("preset reload: %w", relay.ErrNotFound)
	}

	snapshot, err := d.presets.LoadWithFallback(ctx)
	if err != nil {
		return err
	}

	return d.engine.Reload(ctx, snapshot)
}

// isNotFound reports a lookup failure.
func isNotFound(err error) bool {
	return errors.Is(err, relay.ErrNotFound)
}

// buttonsField renders the button subsystem state.
func buttonsField(groups map[string]string) map[string]any {
	rendered := make(map[string]any, len(groups))
	for name, current := range groups {
		rendered[name] = current
	}

	return map[string]any{
		"status": MsgOK,
		"groups": rendered,
	}
}

// configField renders the preset state.
func configField(status engine.Status) map[string]any {
	return map[string]any{
		"valid":   status.Valid,
		"source":  status.Source,
		"pins":    status.Pins,
		"buttons": status.Buttons,
	}
}

// split validates the command shape and returns its segments.
func split(command string) ([]string, error) {
	command = strings.Trim(strings.TrimSpace(command), "/")
	if command == "" {
		return nil, fmt.Errorf("empty command: %w", ErrMalformed)
	}

	segments := strings.Split(command, "/")
	if len(segments) > maxSegments {
		return nil, fmt.Errorf("too many parameters: %w", ErrMalformed)
	}

	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("empty segment in %q: %w", command, ErrMalformed)
		}
	}

	return segments, nil
}
