package db

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const resolvedColumns = `board, source_layer, title, content, content_hash, entry_ref, rotation_date, resolved_at`

const resolvedUpsert = `
	INSERT INTO resolved_state (` + resolvedColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (board) DO UPDATE SET
	    source_layer  = excluded.source_layer,
	    title         = excluded.title,
	    content       = excluded.content,
	    content_hash  = excluded.content_hash,
	    entry_ref     = excluded.entry_ref,
	    rotation_date = excluded.rotation_date,
	    resolved_at   = excluded.resolved_at`

func resolvedArgs(s *model.ResolvedState) []any {
	return []any{
		string(s.Board), int(s.SourceLayer), s.Title, s.Content, s.ContentHash,
		s.EntryRef, s.RotationDate, utc(s.ResolvedAt),
	}
}

func (q *queries) GetResolved(ctx context.Context, board model.Board) (*model.ResolvedState, error) {
	var s model.ResolvedState
	if err := q.get(ctx, &s,
		`SELECT `+resolvedColumns+` FROM resolved_state WHERE board = ?`, string(board),
	); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("board", string(board)).Msg("GetResolved failed")
		}
		return nil, err
	}
	return &s, nil
}

func (q *queries) ListResolved(ctx context.Context) ([]model.ResolvedState, error) {
	out := []model.ResolvedState{}
	if err := q.sel(ctx, &out, `SELECT `+resolvedColumns+` FROM resolved_state ORDER BY board`); err != nil {
		log.Error().Err(err).Msg("ListResolved failed")
		return nil, err
	}
	return out, nil
}

// SaveResolved unconditionally replaces the board's resolved state.
func (q *queries) SaveResolved(ctx context.Context, s *model.ResolvedState) error {
	if _, err := q.exec(ctx, resolvedUpsert, resolvedArgs(s)...); err != nil {
		log.Error().Err(err).Str("board", string(s.Board)).Msg("SaveResolved failed")
		return err
	}
	return nil
}

// SaveResolvedIfChanged writes only when the layer or content hash differs
// from the stored row, and reports whether it wrote.
func (q *queries) SaveResolvedIfChanged(ctx context.Context, s *model.ResolvedState) (bool, error) {
	n, err := q.exec(ctx, resolvedUpsert+`
	WHERE resolved_state.source_layer <> excluded.source_layer
	   OR resolved_state.content_hash <> excluded.content_hash`,
		resolvedArgs(s)...,
	)
	if err != nil {
		log.Error().Err(err).Str("board", string(s.Board)).Msg("SaveResolvedIfChanged failed")
		return false, err
	}
	return n > 0, nil
}

func (q *queries) DeleteResolved(ctx context.Context, board model.Board) (bool, error) {
	n, err := q.exec(ctx, `DELETE FROM resolved_state WHERE board = ?`, string(board))
	if err != nil {
		log.Error().Err(err).Str("board", string(board)).Msg("DeleteResolved failed")
		return false, err
	}
	return n > 0, nil
}
