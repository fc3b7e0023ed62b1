package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/rotation"
)

func newRotateCommand(ctx *commandContext) *cobra.Command {
	var ifDue bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run the daily rotation for the current rotation day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				var (
					res *rotation.Result
					err error
				)
				if ifDue {
					res, err = a.Rotation.Check(cmd.Context())
				} else {
					res, err = a.Rotation.RunNow(cmd.Context())
				}
				if err != nil {
					return err
				}
				if res == nil {
					res = &rotation.Result{Skipped: rotation.SkipAlreadyRotated}
				}
				if ctx.json() {
					return writeJSON(cmd, res)
				}
				if res.Skipped != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Rotation skipped: %s\n", res.Skipped)
					return nil
				}
				renderRotation(cmd, res.Rotation)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ifDue, "if-due", false, "Only rotate when today's rotation has not run yet")
	return cmd
}

func renderRotation(cmd *cobra.Command, r *model.Rotation) {
	if r == nil {
		return
	}
	rows := [][]string{
		{"Rotation date", r.RotationDate.String()},
		{"Boundary", r.Boundary.Format(time.RFC3339)},
		{"Committed", strconv.Itoa(r.Committed)},
		{"Skipped", strconv.Itoa(r.Skipped)},
		{"Failed", strconv.Itoa(r.Failed)},
		{"Overrides cleared", strconv.Itoa(r.ClearedOverrides)},
	}
	printTable(cmd, []string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
