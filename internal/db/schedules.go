package db

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const entryColumns = `id, schedule_date, board, version, title, date_label, content, content_hash, pushed_by, created_at, updated_at`

// UpsertEntry inserts or replaces the entry for (date, board). created_at is
// kept from the first push.
func (q *queries) UpsertEntry(ctx context.Context, e *model.ScheduleEntry) (*model.ScheduleEntry, error) {
	var out model.ScheduleEntry
	query := `
	INSERT INTO schedule_entries
	    (schedule_date, board, version, title, date_label, content, content_hash, pushed_by, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (schedule_date, board) DO UPDATE SET
	    version      = excluded.version,
	    title        = excluded.title,
	    date_label   = excluded.date_label,
	    content      = excluded.content,
	    content_hash = excluded.content_hash,
	    pushed_by    = excluded.pushed_by,
	    updated_at   = excluded.updated_at
	RETURNING ` + entryColumns
	err := q.get(ctx, &out, query,
		e.ScheduleDate, string(e.Board), string(e.Version), e.Title, e.DateLabel,
		e.Content, e.ContentHash, e.PushedBy, utc(e.CreatedAt), utc(e.UpdatedAt),
	)
	if err != nil {
		log.Error().Err(err).Str("date", e.ScheduleDate.String()).Str("board", string(e.Board)).Msg("UpsertEntry failed")
		return nil, err
	}
	return &out, nil
}

func (q *queries) GetEntry(ctx context.Context, date model.Date, board model.Board) (*model.ScheduleEntry, error) {
	var e model.ScheduleEntry
	err := q.get(ctx, &e,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE schedule_date = ? AND board = ?`,
		date, string(board),
	)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("date", date.String()).Str("board", string(board)).Msg("GetEntry failed")
		}
		return nil, err
	}
	return &e, nil
}

func entryWhere(f EntryFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Start != nil {
		clauses = append(clauses, "schedule_date >= ?")
		args = append(args, *f.Start)
	}
	if f.End != nil {
		clauses = append(clauses, "schedule_date <= ?")
		args = append(args, *f.End)
	}
	if f.Board != nil {
		clauses = append(clauses, "board = ?")
		args = append(args, string(*f.Board))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListEntries returns entries ordered by date then board.
func (q *queries) ListEntries(ctx context.Context, f EntryFilter) ([]model.ScheduleEntry, error) {
	where, args := entryWhere(f)
	query := `SELECT ` + entryColumns + ` FROM schedule_entries` + where + ` ORDER BY schedule_date, board`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	out := []model.ScheduleEntry{}
	if err := q.sel(ctx, &out, query, args...); err != nil {
		log.Error().Err(err).Msg("ListEntries failed")
		return nil, err
	}
	return out, nil
}

func (q *queries) CountEntries(ctx context.Context, f EntryFilter) (int, error) {
	where, args := entryWhere(f)
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM schedule_entries`+where, args...); err != nil {
		log.Error().Err(err).Msg("CountEntries failed")
		return 0, err
	}
	return n, nil
}

// UpdateEntry writes the mutable fields of an existing entry by id.
func (q *queries) UpdateEntry(ctx context.Context, e *model.ScheduleEntry) error {
	n, err := q.exec(ctx, `
	UPDATE schedule_entries
	   SET version = ?, title = ?, date_label = ?, content = ?, content_hash = ?, updated_at = ?
	 WHERE id = ?`,
		string(e.Version), e.Title, e.DateLabel, e.Content, e.ContentHash, utc(e.UpdatedAt), e.ID,
	)
	if err != nil {
		log.Error().Err(err).Int64("entry_id", e.ID).Msg("UpdateEntry failed")
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntriesForDate removes every board's entry for date and returns what was removed.
func (q *queries) DeleteEntriesForDate(ctx context.Context, date model.Date) ([]model.ScheduleEntry, error) {
	removed := []model.ScheduleEntry{}
	if err := q.sel(ctx, &removed,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE schedule_date = ? ORDER BY board`, date,
	); err != nil {
		log.Error().Err(err).Str("date", date.String()).Msg("DeleteEntriesForDate select failed")
		return nil, err
	}
	if len(removed) == 0 {
		return removed, nil
	}
	if _, err := q.exec(ctx, `DELETE FROM schedule_entries WHERE schedule_date = ?`, date); err != nil {
		log.Error().Err(err).Str("date", date.String()).Msg("DeleteEntriesForDate failed")
		return nil, err
	}
	return removed, nil
}
