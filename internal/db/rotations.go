package db

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const rotationColumns = `rotation_date, run_id, boundary, started_at, finished_at, committed, skipped, failed, cleared_overrides`

// ClaimRotation inserts the row for r.RotationDate. It reports false when the
// day has already been claimed by an earlier run.
func (q *queries) ClaimRotation(ctx context.Context, r *model.Rotation) (bool, error) {
	n, err := q.exec(ctx, `
	INSERT INTO rotations (rotation_date, run_id, boundary, started_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (rotation_date) DO NOTHING`,
		r.RotationDate, r.RunID, utc(r.Boundary), utc(r.StartedAt),
	)
	if err != nil {
		log.Error().Err(err).Str("rotation_date", r.RotationDate.String()).Msg("ClaimRotation failed")
		return false, err
	}
	return n == 1, nil
}

// FinishRotation records the outcome counts of a claimed run.
func (q *queries) FinishRotation(ctx context.Context, r *model.Rotation) error {
	var finished any
	if r.FinishedAt != nil {
		finished = utc(*r.FinishedAt)
	}
	n, err := q.exec(ctx, `
	UPDATE rotations
	   SET finished_at = ?, committed = ?, skipped = ?, failed = ?, cleared_overrides = ?
	 WHERE rotation_date = ? AND run_id = ?`,
		finished, r.Committed, r.Skipped, r.Failed, r.ClearedOverrides, r.RotationDate, r.RunID,
	)
	if err != nil {
		log.Error().Err(err).Str("rotation_date", r.RotationDate.String()).Msg("FinishRotation failed")
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) GetRotation(ctx context.Context, date model.Date) (*model.Rotation, error) {
	var r model.Rotation
	if err := q.get(ctx, &r,
		`SELECT `+rotationColumns+` FROM rotations WHERE rotation_date = ?`, date,
	); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("rotation_date", date.String()).Msg("GetRotation failed")
		}
		return nil, err
	}
	return &r, nil
}

func (q *queries) LatestRotation(ctx context.Context) (*model.Rotation, error) {
	var r model.Rotation
	if err := q.get(ctx, &r,
		`SELECT `+rotationColumns+` FROM rotations ORDER BY rotation_date DESC LIMIT 1`,
	); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Msg("LatestRotation failed")
		}
		return nil, err
	}
	return &r, nil
}
