// Package schedule is the content store: the calendar of (date, board) cards
// and every mutation on it.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
)

const (
	DefaultPageSize = 31
	MaxPageSize     = 100
)

// SnapshotRefresher rewrites the on-disk snapshot. Refresh failures are
// handled by the refresher and never undo a committed mutation.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

type Options struct {
	Store    db.Store
	Audit    *audit.Log
	Catalog  *model.Catalog
	Location *time.Location
	Now      func() time.Time
	Snapshot SnapshotRefresher
	Notifier notify.Notifier
}

type Service struct {
	store    db.Store
	audit    *audit.Log
	catalog  *model.Catalog
	loc      *time.Location
	now      func() time.Time
	snapshot SnapshotRefresher
	notifier notify.Notifier
}

func NewService(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		audit:    opts.Audit,
		catalog:  opts.Catalog,
		loc:      opts.Location,
		now:      opts.Now,
		snapshot: opts.Snapshot,
		notifier: opts.Notifier,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.catalog == nil {
		s.catalog = model.DefaultCatalog()
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.audit == nil {
		s.audit = audit.New(s.store, s.now)
	}
	return s
}

// Today is the current calendar day in the facility timezone.
func (s *Service) Today() model.Date {
	return model.DateIn(s.now(), s.loc)
}

func (s *Service) Catalog() *model.Catalog { return s.catalog }

// Push validates all inputs, then upserts them and their audit records in
// one transaction. Later duplicates of a (date, board) key win.
func (s *Service) Push(ctx context.Context, inputs []EntryInput, actor string) ([]model.ScheduleEntry, error) {
	valid, err := s.validatePush(inputs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]model.ScheduleEntry, 0, len(valid))
	err = s.store.WithTx(ctx, func(tx db.Tx) error {
		for _, in := range valid {
			saved, err := tx.UpsertEntry(ctx, &model.ScheduleEntry{
				ScheduleDate: in.Date,
				Board:        in.Board,
				Version:      in.Version,
				Title:        in.Title,
				DateLabel:    in.DateLabel,
				Content:      in.Content,
				ContentHash:  model.HashContent(in.Content),
				PushedBy:     actor,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if err != nil {
				return fmt.Errorf("upsert %s/%s: %w", in.Date, in.Board, err)
			}
			if err := s.audit.Record(ctx, tx, audit.Entry{
				Action:       model.ActionPush,
				Board:        audit.BoardPtr(in.Board),
				ScheduleDate: audit.DatePtr(in.Date),
				Details: model.Details{
					"entry_id":     saved.ID,
					"title":        saved.Title,
					"version":      string(saved.Version),
					"content_hash": saved.ContentHash,
				},
				Actor: actor,
			}); err != nil {
				return err
			}
			out = append(out, *saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("entries", len(out)).Str("actor", actor).Msg("schedule pushed")
	s.afterChange(ctx, entryKeys(out)...)
	return out, nil
}

// Get returns the entry for (board, date), or nil when there is none.
func (s *Service) Get(ctx context.Context, board model.Board, date model.Date) (*model.ScheduleEntry, error) {
	e, err := s.store.GetEntry(ctx, date, board)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

type RangeQuery struct {
	Start    *model.Date
	End      *model.Date
	Page     int
	PageSize int
}

type RangePage struct {
	Entries  []model.ScheduleEntry `json:"entries"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// Range pages through entries ordered by date then board. Bounds are inclusive.
func (s *Service) Range(ctx context.Context, q RangeQuery) (*RangePage, error) {
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return nil, apperr.Validation("end %s is before start %s", q.End, q.Start)
	}
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	filter := db.EntryFilter{Start: q.Start, End: q.End}
	total, err := s.store.CountEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size
	entries, err := s.store.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return &RangePage{Entries: entries, Total: total, Page: page, PageSize: size}, nil
}

// GetRange returns every entry between start and end inclusive.
func (s *Service) GetRange(ctx context.Context, start, end model.Date) ([]model.ScheduleEntry, error) {
	if end.Before(start) {
		return nil, apperr.Validation("end %s is before start %s", end, start)
	}
	entries, err := s.store.ListEntries(ctx, db.EntryFilter{Start: &start, End: &end})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ForDate groups one day's entries by board.
func (s *Service) ForDate(ctx context.Context, date model.Date) (*model.DaySchedule, error) {
	entries, err := s.GetRange(ctx, date, date)
	if err != nil {
		return nil, err
	}
	day := &model.DaySchedule{Date: date, Entries: make(map[model.Board]model.ScheduleEntry, len(entries))}
	for _, e := range entries {
		day.Entries[e.Board] = e
	}
	return day, nil
}

// Edit patches an entry dated today or later.
func (s *Service) Edit(ctx context.Context, date model.Date, board model.Board, patch model.EntryPatch, actor string) (*model.ScheduleEntry, error) {
	if err := s.validateBoard(board); err != nil {
		return nil, err
	}
	if today := s.Today(); date.Before(today) {
		return nil, apperr.Immutable("cannot edit %s: date is before today (%s)", date, today)
	}
	if patch.Version != nil {
		if err := s.validateVersion(*patch.Version); err != nil {
			return nil, err
		}
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validation("workout_title cannot be empty")
		}
		patch.Title = &title
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return nil, apperr.Validation("html_content cannot be empty")
	}

	var updated *model.ScheduleEntry
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		e, err := tx.GetEntry(ctx, date, board)
		if errors.Is(err, db.ErrNotFound) {
			return apperr.NotFound("no entry for %s / %s", date, board)
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		if patch.Empty() {
			updated = e
			return nil
		}

		if patch.Title != nil {
			e.Title = *patch.Title
		}
		if patch.Content != nil {
			e.Content = *patch.Content
			e.ContentHash = model.HashContent(e.Content)
		}
		if patch.Version != nil {
			e.Version = *patch.Version
		}
		if patch.DateLabel != nil {
			e.DateLabel = patch.DateLabel
		}
		e.UpdatedAt = s.now().UTC()
		if err := tx.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		updated = e
		return s.audit.Record(ctx, tx, audit.Entry{
			Action:       model.ActionEdit,
			Board:        audit.BoardPtr(board),
			ScheduleDate: audit.DatePtr(date),
			Details:      model.Details{"changes": patch.Changed(), "entry_id": e.ID},
			Actor:        actor,
		})
	})
	if err != nil {
		return nil, err
	}
	if !patch.Empty() {
		s.afterChange(ctx, entryKey{date: date, board: board})
	}
	return updated, nil
}

// DeleteDay removes every board's card for date and returns how many went.
func (s *Service) DeleteDay(ctx context.Context, date model.Date, actor string) (int, error) {
	if today := s.Today(); date.Before(today) {
		return 0, apperr.Immutable("cannot delete %s: date is before today (%s)", date, today)
	}

	var removed []model.ScheduleEntry
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		removed, err = tx.DeleteEntriesForDate(ctx, date)
		if err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		if len(removed) == 0 {
			return apperr.NotFound("no entries for %s", date)
		}
		for _, e := range removed {
			if err := s.audit.Record(ctx, tx, audit.Entry{
				Action:       model.ActionDelete,
				Board:        audit.BoardPtr(e.Board),
				ScheduleDate: audit.DatePtr(date),
				Details:      model.Details{"entry_id": e.ID, "title": e.Title},
				Actor:        actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.afterChange(ctx, entryKeys(removed)...)
	return len(removed), nil
}

type entryKey struct {
	date  model.Date
	board model.Board
}

func entryKeys(entries []model.ScheduleEntry) []entryKey {
	out := make([]entryKey, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryKey{date: e.ScheduleDate, board: e.Board})
	}
	return out
}

// afterChange refreshes the snapshot and pokes displays whose card for
// today changed.
func (s *Service) afterChange(ctx context.Context, keys ...entryKey) {
	if s.snapshot != nil {
		_ = s.snapshot.Refresh(ctx)
	}
	today := s.Today()
	seen := make(map[model.Board]bool)
	for _, k := range keys {
		if k.date != today || seen[k.board] {
			continue
		}
		seen[k.board] = true
		s.notifier.BoardChanged(ctx, k.board, notify.ReasonSchedule)
	}
}
