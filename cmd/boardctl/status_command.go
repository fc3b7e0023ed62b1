package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

type boardStatus struct {
	Board    model.Board          `json:"board"`
	Resolved *model.ResolvedState `json:"resolved,omitempty"`
	Override *model.Override      `json:"override,omitempty"`
}

type statusReport struct {
	ServerTime     time.Time       `json:"server_time"`
	Today          model.Date      `json:"today"`
	NextRotationAt time.Time       `json:"next_rotation_at"`
	LastRotation   *model.Rotation `json:"last_rotation,omitempty"`
	Boards         []boardStatus   `json:"boards"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what each board is showing and when the next rotation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				report, err := buildStatus(cmd, a)
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, report)
				}
				renderStatus(cmd, report)
				return nil
			})
		},
	}
}

func buildStatus(cmd *cobra.Command, a *app.App) (*statusReport, error) {
	reqCtx := cmd.Context()
	now := a.Now()
	report := &statusReport{
		ServerTime:     now,
		Today:          a.Schedule.Today(),
		NextRotationAt: a.Rotation.NextRotation(now),
	}

	last, err := a.Store.LatestRotation(reqCtx)
	switch {
	case err == nil:
		report.LastRotation = last
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("latest rotation: %w", err)
	}

	for _, b := range a.Schedule.Catalog().Boards() {
		st := boardStatus{Board: b}
		resolved, err := a.Store.GetResolved(reqCtx, b)
		switch {
		case err == nil:
			st.Resolved = resolved
		case !errors.Is(err, db.ErrNotFound):
			return nil, fmt.Errorf("resolved state for %s: %w", b, err)
		}
		if st.Override, err = a.Overrides.Active(reqCtx, b); err != nil {
			return nil, fmt.Errorf("override for %s: %w", b, err)
		}
		report.Boards = append(report.Boards, st)
	}
	return report, nil
}

func renderStatus(cmd *cobra.Command, r *statusReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Today:         %s\n", r.Today)
	fmt.Fprintf(out, "Next rotation: %s\n", r.NextRotationAt.Format(time.RFC3339))
	if r.LastRotation != nil {
		fmt.Fprintf(out, "Last rotation: %s (%d committed, %d failed)\n",
			r.LastRotation.RotationDate, r.LastRotation.Committed, r.LastRotation.Failed)
	} else {
		fmt.Fprintln(out, "Last rotation: never")
	}

	rows := make([][]string, 0, len(r.Boards))
	for _, b := range r.Boards {
		layer, title, hash, override := "-", "-", "-", "-"
		if b.Resolved != nil {
			layer = strconv.Itoa(int(b.Resolved.SourceLayer))
			title = b.Resolved.Title
			hash = shortHash(b.Resolved.ContentHash)
		}
		if b.Override != nil {
			override = b.Override.Reason
			if override == "" {
				override = "active"
			}
		}
		rows = append(rows, []string{string(b.Board), layer, title, hash, override})
	}
	printTable(cmd, []string{"Board", "Layer", "Title", "Hash", "Override"}, rows,
		[]columnAlignment{alignLeft, alignRight})
}
