package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/ant-controller/internal/config"
	"github.com/oshokin/ant-controller/internal/service/server"
	"github.com/oshokin/ant-controller/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where group selections are persisted.
	stateFile string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the controller daemon.
	rootCmd = &cobra.Command{
		Use:   "antctrl-server [listen-address]",
		Short: "Run the antenna controller daemon.",
		Long: `Starts the antenna controller: drives the relay board, enforces interlocks and
serves commands.

On start every output is driven low, the pin and button presets are loaded (falling back
to the simple preset when the primary pair fails) and every button group is reset.
Commands are served over gRPC and, when configured, over HTTP, MQTT and a serial terminal.
Only the port from grpc_addr is used for listening (e.g., :50051).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:50051).
Group selections are persisted to a JSON file and optionally restored on start.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				LogLevel:      logLevel,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the antctrl-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist group selections (overrides settings)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
}
