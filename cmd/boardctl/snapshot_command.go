package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/snapshot"
)

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Rewrite the offline snapshot from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				if err := a.Snapshot.Refresh(cmd.Context()); err != nil {
					return err
				}
				doc, err := snapshot.Read(a.Snapshot.Path())
				if err != nil {
					return fmt.Errorf("read back snapshot: %w", err)
				}
				if ctx.json() {
					return writeJSON(cmd, map[string]any{
						"path":      a.Snapshot.Path(),
						"entries":   len(doc.Entries),
						"overrides": len(doc.Overrides),
						"today":     doc.Today,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d entries, %d overrides)\n",
					a.Snapshot.Path(), len(doc.Entries), len(doc.Overrides))
				return nil
			})
		},
	}
}
