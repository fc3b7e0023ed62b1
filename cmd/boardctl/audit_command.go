package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var action, board string
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := audit.Filter{PageSize: limit}
			if action != "" {
				act := model.Action(action)
				if !act.Valid() {
					return fmt.Errorf("unknown action %q", action)
				}
				filter.Action = &act
			}
			if board != "" {
				filter.Board = audit.BoardPtr(model.Board(board))
			}

			return ctx.withApp(cmd, func(a *app.App) error {
				page, err := a.Audit.Query(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, page)
				}
				rows := make([][]string, 0, len(page.Records))
				for _, r := range page.Records {
					boardCol, dateCol := "-", "-"
					if r.Board != nil {
						boardCol = string(*r.Board)
					}
					if r.ScheduleDate != nil {
						dateCol = r.ScheduleDate.String()
					}
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Timestamp.Format(time.RFC3339),
						string(r.Action), boardCol, dateCol, r.Actor,
					})
				}
				printTable(cmd, []string{"ID", "Time", "Action", "Board", "Date", "Actor"}, rows,
					[]columnAlignment{alignRight})
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d record(s)\n", len(page.Records), page.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "Only this action (push, edit, delete, clone, override, ...)")
	cmd.Flags().StringVar(&board, "board", "", "Only this board")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")
	return cmd
}
