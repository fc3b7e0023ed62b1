package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var jsonFlag bool
	var logLevel string

	ctx := newCommandContext(&jsonFlag, &logLevel)

	rootCmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Operate the workout board scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newScheduleCommand(ctx))
	rootCmd.AddCommand(newPushCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newRotateCommand(ctx))
	rootCmd.AddCommand(newAuditCommand(ctx))
	rootCmd.AddCommand(newSnapshotCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))
	rootCmd.AddCommand(newHashKeyCommand())

	return rootCmd
}
