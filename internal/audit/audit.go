// Package audit is the append-only trail of schedule mutations.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Entry is what callers hand to the log; the id and timestamp are assigned here.
type Entry struct {
	Action       model.Action
	Board        *model.Board
	ScheduleDate *model.Date
	Details      model.Details
	Actor        string
}

// Filter selects records for Query. Page is 1-based.
type Filter struct {
	Action   *model.Action
	Board    *model.Board
	Page     int
	PageSize int
}

type Page struct {
	Records  []model.AuditRecord `json:"records"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

type Log struct {
	store db.Store
	now   func() time.Time
}

func New(store db.Store, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{store: store, now: now}
}

func (l *Log) record(e Entry) *model.AuditRecord {
	details := e.Details
	if details == nil {
		details = model.Details{}
	}
	actor := e.Actor
	if actor == "" {
		actor = "system"
	}
	return &model.AuditRecord{
		Action:       e.Action,
		Board:        e.Board,
		ScheduleDate: e.ScheduleDate,
		Details:      details,
		Timestamp:    l.now().UTC(),
		Actor:        actor,
	}
}

// Record appends inside the caller's transaction, so the audit row commits
// or rolls back with the mutation it describes.
func (l *Log) Record(ctx context.Context, tx db.Tx, e Entry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("audit: unknown action %q", e.Action)
	}
	if err := tx.InsertAudit(ctx, l.record(e)); err != nil {
		return fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return nil
}

// Append writes a standalone record, used for warnings that have no
// surrounding transaction.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("audit: unknown action %q", e.Action)
	}
	if err := l.store.InsertAudit(ctx, l.record(e)); err != nil {
		log.Error().Err(err).Str("action", string(e.Action)).Msg("audit append failed")
		return fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return nil
}

// Query returns records newest first.
func (l *Log) Query(ctx context.Context, f Filter) (*Page, error) {
	page, size := normalizePage(f.Page, f.PageSize, DefaultPageSize, MaxPageSize)
	filter := db.AuditFilter{Action: f.Action, Board: f.Board}

	total, err := l.store.CountAudit(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count audit: %w", err)
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size
	records, err := l.store.ListAudit(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return &Page{Records: records, Total: total, Page: page, PageSize: size}, nil
}

func normalizePage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}

// BoardPtr and DatePtr shorten Entry literals.
func BoardPtr(b model.Board) *model.Board { return &b }

func DatePtr(d model.Date) *model.Date { return &d }
