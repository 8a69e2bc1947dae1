package main

import (
	"github.com/spf13/cobra"

	"lbfeed/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feed daemon in the foreground",
		Long: `Run the feed daemon until interrupted.

The daemon takes the data-directory lock, starts the release resolver, and
serves GET /feed?user=<name>&days=<n>, /healthz, and /metrics on server.bind.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}
