package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

type resolution struct {
	Board       model.Board `json:"board"`
	Layer       model.Layer `json:"layer"`
	Source      string      `json:"source"`
	Title       string      `json:"title"`
	ContentHash string      `json:"content_hash"`
	ResolvedAt  time.Time   `json:"resolved_at"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "resolve <board>",
		Short: "Resolve a board the way a display would and report which layer answered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				board := model.Board(args[0])
				if !a.Schedule.Catalog().HasBoard(board) {
					return fmt.Errorf("unknown board %q", board)
				}
				instant := a.Now()
				if at != "" {
					t, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("--at: %w", err)
					}
					instant = t
				}

				res := a.Engine.Resolve(cmd.Context(), board, instant)
				out := resolution{
					Board:       res.Board,
					Layer:       res.Layer,
					Source:      res.Source,
					Title:       res.Artifact.Title,
					ContentHash: res.Artifact.ContentHash,
					ResolvedAt:  res.ResolvedAt,
				}
				if ctx.json() {
					return writeJSON(cmd, out)
				}
				rows := [][]string{
					{"Board", string(out.Board)},
					{"Layer", strconv.Itoa(int(out.Layer)) + " (" + out.Layer.String() + ")"},
					{"Source", out.Source},
					{"Title", out.Title},
					{"Hash", shortHash(out.ContentHash)},
				}
				printTable(cmd, []string{"Field", "Value"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Resolve as of this RFC 3339 instant (default now)")
	return cmd
}
