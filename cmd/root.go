package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supplydash/internal/cli"
	"supplydash/internal/config"
	"supplydash/pkg/logging"
)

var (
	// configPath is the YAML configuration file. Empty means supplydash.yaml
	// in the working directory, if it exists.
	configPath string

	// debug enables debug logging for every command.
	debug bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "supplydash",
	Short: "Supply-chain analytics dashboard backend",
	Long: `supplydash serves the supply-chain analytics dashboard: a JSON data API
over the sales_summary view, an OAuth token broker for the embedded analytics
engine, and a WebSocket tunnel that carries the engine session to the
analytics host with the bearer token attached.

The owner logs in once (supplydash auth login); the refresh token that login
yields lets visitors use the dashboard as guests afterwards.`,
	// Errors are reported by cobra; usage is only noise at that point.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code that reflects the
// outcome (see cli.ExitCode).
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "supplydash version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(cli.ExitCode(err))
	}
}

// loadSettings loads and validates the configuration for client commands
// and points logging at stderr so command output stays clean.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	level := logging.LevelWarn
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	settings, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default ./supplydash.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
}
