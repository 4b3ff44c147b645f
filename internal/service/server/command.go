package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/ant-controller/internal/config"
	"github.com/oshokin/ant-controller/internal/logger"
	"github.com/oshokin/ant-controller/internal/version"
)

// Options controls the controller daemon process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile specifies the path to persist group selections.
	StateFile string
	// LogLevel overrides the configured log level.
	LogLevel string
}

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// ErrAlreadyRunning indicates another daemon owns the hardware.
	ErrAlreadyRunning = errors.New("controller is already running")
	// errUnknownLogLevel is returned for an unparsable log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Run boots the controller and serves every configured transport until
// context is canceled. Loads configuration first, then determines listen
// address from config or override.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "antctrl-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	logger.SetLevel(level)

	// Only one daemon may drive the expanders.
	if settings.IO.Backend == config.BackendExpander {
		if err = ensureSingleInstance(ps.Processes, os.Getpid()); err != nil {
			return err
		}
	}

	listenAddress, err := resolveListenAddress(settings.GRPCAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	d, err := newDaemon(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise controller: %w", err)
	}

	defer d.close(ctx)

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Controller started", append(version.KV(),
		"listen_address", listenAddress,
		"state_file", settings.StateFile,
		"backend", settings.IO.Backend,
		"policy", settings.Guard.Policy,
	)...)

	return d.serve(ctx, lis)
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	// Extract port from config address (e.g., "shack-pi:50051" -> ":50051").
	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}

// ensureSingleInstance fails when another process runs the same executable.
func ensureSingleInstance(processes func() ([]ps.Process, error), selfPID int) error {
	processList, err := processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var executable string

	for _, process := range processList {
		if process.Pid() == selfPID {
			executable = process.Executable()

			break
		}
	}

	if executable == "" {
		return nil
	}

	for _, process := range processList {
		if process.Pid() == selfPID || process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, process.Pid())
	}

	return nil
}
