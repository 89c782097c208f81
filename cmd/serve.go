package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"supplydash/internal/app"
)

// serveCmd starts the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the supplydash server",
	Long: `Starts the supplydash HTTP server.

Routes:
  POST /api/auth/token     exchange an authorization code (owner login)
  GET  /api/auth/guest     guest access token from the stored refresh token
  GET  /api/orders, /api/kpis, /api/charts/*, /api/filters/options
  GET  /health
  /tunnel/*                WebSocket tunnel to the analytics engine

/api/qlik/* is accepted as an alias of /api/auth/*.

Configuration:
  supplydash.yaml in the working directory, or the file given with --config.
  A .env file is loaded if present. PORT, DB_HOST, DB_USER, DB_PASSWORD,
  DB_NAME and DB_PORT override the file, as do the SUPPLYDASH_* variables.

The server shuts down gracefully on SIGINT or SIGTERM and notifies systemd
when it is ready.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.NewConfig(debug, false, configPath))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	return application.Run(cmd.Context())
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
