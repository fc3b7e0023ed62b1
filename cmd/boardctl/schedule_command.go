package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/schedule"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "List scheduled cards (default: the next seven days)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				from := a.Schedule.Today()
				if start != "" {
					d, err := model.ParseDate(start)
					if err != nil {
						return fmt.Errorf("--start: %w", err)
					}
					from = d
				}
				to := from.AddDays(6)
				if end != "" {
					d, err := model.ParseDate(end)
					if err != nil {
						return fmt.Errorf("--end: %w", err)
					}
					to = d
				}

				entries, err := a.Schedule.GetRange(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.ScheduleDate.String(), string(e.Board), string(e.Version),
						e.Title, shortHash(e.ContentHash), e.PushedBy,
					})
				}
				printTable(cmd, []string{"Date", "Board", "Version", "Title", "Hash", "Pushed by"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD (default start+6)")
	return cmd
}

func newPushCommand(ctx *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "push <file.json>",
		Short: "Push cards from a JSON file in the same shape as POST /api/schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var request packets.PushRequest
			if err := json.Unmarshal(data, &request); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			inputs := make([]schedule.EntryInput, 0, len(request.Entries))
			for i, e := range request.Entries {
				date, err := model.ParseDate(e.ScheduleDate)
				if err != nil {
					return fmt.Errorf("entry %d: invalid schedule_date %q", i, e.ScheduleDate)
				}
				inputs = append(inputs, schedule.EntryInput{
					Date:      date,
					Board:     model.Board(e.Board),
					Version:   model.Version(e.Version),
					Title:     e.Title,
					DateLabel: e.DateLabel,
					Content:   e.Content,
				})
			}

			return ctx.withApp(cmd, func(a *app.App) error {
				saved, err := a.Schedule.Push(cmd.Context(), inputs, actor)
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, packets.PushResponse{Status: "ok", Scheduled: len(saved), Entries: saved})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %d card(s)\n", len(saved))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "boardctl", "Actor recorded in the audit log")
	return cmd
}
