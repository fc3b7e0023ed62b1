package schedule

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const daysPerWeek = 7

// CloneWeekResult reports what a week clone copied.
type CloneWeekResult struct {
	Count   int                   `json:"cloned"`
	Days    []model.Date          `json:"days"`
	Entries []model.ScheduleEntry `json:"entries"`
}

// copyEntry upserts src onto target with fresh timestamps.
func (s *Service) copyEntry(ctx context.Context, tx db.Tx, src model.ScheduleEntry, target model.Date, actor string) (*model.ScheduleEntry, error) {
	now := s.now().UTC()
	saved, err := tx.UpsertEntry(ctx, &model.ScheduleEntry{
		ScheduleDate: target,
		Board:        src.Board,
		Version:      src.Version,
		Title:        src.Title,
		DateLabel:    src.DateLabel,
		Content:      src.Content,
		ContentHash:  src.ContentHash,
		PushedBy:     actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("copy %s/%s to %s: %w", src.ScheduleDate, src.Board, target, err)
	}
	return saved, nil
}

// Clone copies one day's cards (optionally one board) onto target, replacing
// whatever target held for those boards.
func (s *Service) Clone(ctx context.Context, source, target model.Date, board *model.Board, actor string) ([]model.ScheduleEntry, error) {
	if today := s.Today(); target.Before(today) {
		return nil, apperr.Validation("cannot clone to %s: date is before today (%s)", target, today)
	}
	if board != nil {
		if err := s.validateBoard(*board); err != nil {
			return nil, err
		}
	}

	var cloned []model.ScheduleEntry
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		sources, err := tx.ListEntries(ctx, db.EntryFilter{Start: &source, End: &source, Board: board})
		if err != nil {
			return fmt.Errorf("list source entries: %w", err)
		}
		if len(sources) == 0 {
			return apperr.NotFound("no cards found on %s to clone", source)
		}
		for _, src := range sources {
			saved, err := s.copyEntry(ctx, tx, src, target, actor)
			if err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, audit.Entry{
				Action:       model.ActionClone,
				Board:        audit.BoardPtr(src.Board),
				ScheduleDate: audit.DatePtr(target),
				Details: model.Details{
					"source_date": source.String(),
					"target_date": target.String(),
					"entry_id":    saved.ID,
				},
				Actor: actor,
			}); err != nil {
				return err
			}
			cloned = append(cloned, *saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("source", source.String()).Str("target", target.String()).Int("count", len(cloned)).Msg("day cloned")
	s.afterChange(ctx, entryKeys(cloned)...)
	return cloned, nil
}

// CloneWeek copies the seven days starting at sourceStart onto the seven days
// starting at targetStart. Missing source days are skipped and leave their
// target days untouched. One audit record summarises the whole copy.
func (s *Service) CloneWeek(ctx context.Context, sourceStart, targetStart model.Date, actor string) (*CloneWeekResult, error) {
	if today := s.Today(); targetStart.Before(today) {
		return nil, apperr.Validation("cannot clone to week of %s: date is before today (%s)", targetStart, today)
	}

	res := &CloneWeekResult{Days: []model.Date{}, Entries: []model.ScheduleEntry{}}
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		sourceEnd := sourceStart.AddDays(daysPerWeek - 1)
		sources, err := tx.ListEntries(ctx, db.EntryFilter{Start: &sourceStart, End: &sourceEnd})
		if err != nil {
			return fmt.Errorf("list source week: %w", err)
		}
		if len(sources) == 0 {
			return apperr.NotFound("no cards found in week of %s to clone", sourceStart)
		}

		boards := map[model.Board]bool{}
		days := map[model.Date]bool{}
		for _, src := range sources {
			target := targetStart.AddDays(sourceStart.DaysUntil(src.ScheduleDate))
			saved, err := s.copyEntry(ctx, tx, src, target, actor)
			if err != nil {
				return err
			}
			res.Entries = append(res.Entries, *saved)
			boards[src.Board] = true
			if !days[target] {
				days[target] = true
				res.Days = append(res.Days, target)
			}
		}
		res.Count = len(res.Entries)

		boardList := make([]string, 0, len(boards))
		for _, b := range s.catalog.Boards() {
			if boards[b] {
				boardList = append(boardList, string(b))
			}
		}
		dayList := make([]string, 0, len(res.Days))
		for _, d := range res.Days {
			dayList = append(dayList, d.String())
		}
		return s.audit.Record(ctx, tx, audit.Entry{
			Action:       model.ActionClone,
			ScheduleDate: audit.DatePtr(targetStart),
			Details: model.Details{
				"source_week_start": sourceStart.String(),
				"target_week_start": targetStart.String(),
				"count":             res.Count,
				"days":              dayList,
				"boards":            boardList,
			},
			Actor: actor,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("source", sourceStart.String()).Str("target", targetStart.String()).Int("count", res.Count).Msg("week cloned")
	s.afterChange(ctx, entryKeys(res.Entries)...)
	return res, nil
}
