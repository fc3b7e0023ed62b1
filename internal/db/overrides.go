package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const overrideColumns = `id, board, content, content_hash, reason, source_date, applied_at, applied_by, active, cleared_at, cleared_by, clear_reason`

// InsertOverride stores a new active override. A second active override for
// the same board fails with ErrConflict.
func (q *queries) InsertOverride(ctx context.Context, o *model.Override) error {
	_, err := q.exec(ctx, `
	INSERT INTO overrides (id, board, content, content_hash, reason, source_date, applied_at, applied_by, active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Board), o.Content, o.ContentHash, o.Reason, o.SourceDate,
		utc(o.AppliedAt), o.AppliedBy, true,
	)
	if err != nil {
		if !errors.Is(err, ErrConflict) {
			log.Error().Err(err).Str("board", string(o.Board)).Msg("InsertOverride failed")
		}
		return err
	}
	o.Active = true
	return nil
}

func (q *queries) GetActiveOverride(ctx context.Context, board model.Board) (*model.Override, error) {
	var o model.Override
	err := q.get(ctx, &o,
		`SELECT `+overrideColumns+` FROM overrides WHERE board = ? AND active = ?`,
		string(board), true,
	)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("board", string(board)).Msg("GetActiveOverride failed")
		}
		return nil, err
	}
	return &o, nil
}

func (q *queries) ListActiveOverrides(ctx context.Context) ([]model.Override, error) {
	out := []model.Override{}
	if err := q.sel(ctx, &out,
		`SELECT `+overrideColumns+` FROM overrides WHERE active = ? ORDER BY board`, true,
	); err != nil {
		log.Error().Err(err).Msg("ListActiveOverrides failed")
		return nil, err
	}
	return out, nil
}

// DeactivateOverride marks an active override cleared. It reports false when
// the override was already inactive.
func (q *queries) DeactivateOverride(ctx context.Context, id string, at time.Time, by, reason string) (bool, error) {
	n, err := q.exec(ctx, `
	UPDATE overrides
	   SET active = ?, cleared_at = ?, cleared_by = ?, clear_reason = ?
	 WHERE id = ? AND active = ?`,
		false, utc(at), by, reason, id, true,
	)
	if err != nil {
		log.Error().Err(err).Str("override_id", id).Msg("DeactivateOverride failed")
		return false, err
	}
	return n > 0, nil
}
