package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/ant-controller/internal/config"
	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/service/common"
	"github.com/oshokin/ant-controller/internal/service/dispatch"
)

// Options configures the controller connection.
type Options struct {
	// ConfigPath to YAML settings file, read only when ServerAddress is empty.
	ConfigPath string
	// ServerAddress overrides the address from the settings.
	ServerAddress string
	// Timeout bounds one call; common.DefaultCallTimeout when zero.
	Timeout time.Duration
	// Output receives the printed results.
	Output io.Writer
}

// errCommandFailed is returned when the controller answers with an error result.
var errCommandFailed = errors.New("command failed")

// Exec runs one command on the controller and prints its result.
func Exec(ctx context.Context, opts *Options, command string) error {
	ctx = logger.WithName(ctx, "antctrl")

	return withClient(ctx, opts, func(client *common.Client) (dispatch.Result, error) {
		return client.Execute(ctx, command)
	})
}

// Status prints the status snapshot of the controller.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "antctrl")

	return withClient(ctx, opts, func(client *common.Client) (dispatch.Result, error) {
		return client.Status(ctx)
	})
}

// withClient connects, runs call and prints the result.
func withClient(
	ctx context.Context,
	opts *Options,
	call func(client *common.Client) (dispatch.Result, error),
) error {
	address, err := serverAddress(opts)
	if err != nil {
		return err
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(opts.Timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling controller", "server_address", address)

	result, err := call(client)
	if err != nil {
		return err
	}

	if err = printResult(opts.Output, result); err != nil {
		return err
	}

	if !result.Succeeded() {
		return fmt.Errorf("%w: %s", errCommandFailed, result.Msg)
	}

	return nil
}

// serverAddress returns the dialable controller address.
func serverAddress(opts *Options) (string, error) {
	address := opts.ServerAddress

	if address == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return "", err
		}

		address = cfg.GRPCAddress
	}

	return dialAddress(address)
}

// dialAddress turns a listen address such as ":50051" into a dialable one.
func dialAddress(address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", address, err)
	}

	if host == "" {
		host = "localhost"
	}

	return net.JoinHostPort(host, port), nil
}

// printResult writes the result as indented JSON.
func printResult(w io.Writer, result dispatch.Result) error {
	if w == nil {
		return nil
	}

	message, err := result.Struct()
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(message)
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}
