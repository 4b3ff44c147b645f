package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/ant-controller/internal/config"
	"github.com/oshokin/ant-controller/internal/service/client"
	"github.com/oshokin/ant-controller/internal/service/common"
	"github.com/oshokin/ant-controller/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides the controller address from the settings.
	serverAddress string
	// timeout bounds one call to the controller.
	timeout = common.DefaultCallTimeout

	// rootCmd represents the base command of the controller client.
	rootCmd = &cobra.Command{
		Use:   "antctrl",
		Short: "Control a running antenna controller.",
		Long: `Sends commands to a running antenna controller and prints the JSON results.

Commands follow the TAG/PARAM/VALUE grammar, for example:
  antctrl exec BUT/ant/A      select button A of group ant
  antctrl exec BUT/ant/OFF    release group ant
  antctrl exec REL/3/on       energize relay 3
  antctrl exec INP/bits       read the input bank

The controller address is taken from --address or from grpc_addr in the settings.`,
		SilenceUsage: true,
	}

	// execCmd runs one command.
	execCmd = &cobra.Command{
		Use:   "exec <command>",
		Short: "Execute one command.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Exec(ctx, clientOptions(cmd), args[0])
		},
	}

	// statusCmd prints the status snapshot.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the controller status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Status(ctx, clientOptions(cmd))
		},
	}

	// validateCmd parses preset documents offline.
	validateCmd = &cobra.Command{
		Use:   "validate <preset>...",
		Short: "Validate preset documents.",
		Long: `Parses preset documents in order, as the controller does, and prints the
resulting pins, guards and button groups. No controller is contacted.

Example: antctrl validate pins.conf buttons.conf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Validate(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
)

// clientOptions collects the connection flags.
func clientOptions(cmd *cobra.Command) *client.Options {
	return &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Timeout:       timeout,
		Output:        cmd.OutOrStdout(),
	}
}

// Execute runs the antctrl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "address", "a", "", "controller address (overrides settings)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", common.DefaultCallTimeout, "call timeout")

	rootCmd.AddCommand(execCmd, statusCmd, validateCmd)
}
