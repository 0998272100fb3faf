package main

import (
	"github.com/aussiebroadwan/gatekeep/internal/api/app"
	"github.com/spf13/cobra"
)

// configPath is the optional YAML file shared by every subcommand.
var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatekeep",
		Short: "Gatekeep API (version: " + app.BuildVersion + ")",
		Long: `Gatekeep issues HS256 access and refresh tokens and revokes them by
bumping a per-user version. Configuration comes from an optional YAML file
overlaid by environment variables (jwt.secret is read from JWT_SECRET).`,
		Version: app.BuildVersion,

		// Running without a subcommand serves the API.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML configuration file (environment variables take precedence)")

	root.AddCommand(
		newServeCmd(),
		newTokenCmd(),
		newConfigCmd(),
		newSecretCmd(),
	)

	return root
}

func loadConfig() (app.Config, error) {
	return app.LoadConfig(configPath)
}
