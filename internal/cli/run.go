package cli

import (
	"github.com/spf13/cobra"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/app"
)

var runOpts app.RunOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled forecast refresh service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), runOpts)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the forecast HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Migrate(cmd.Context(), migrateDir)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.Once, "once", false, "Refresh every series once and exit")
	runCmd.Flags().BoolVar(&runOpts.Serve, "serve", false, "Also serve the HTTP API")
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "Migrations directory (defaults to database.migrations_path)")
}
