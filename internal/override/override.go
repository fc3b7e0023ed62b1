// Package override manages emergency cards that outrank the calendar for a
// board until cleared or rotated out.
package override

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
)

// applyAttempts bounds retries when a concurrent apply wins the
// one-active-per-board race.
const applyAttempts = 3

type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

// ApplyRequest carries either inline content or a date whose scheduled card
// for the board is copied.
type ApplyRequest struct {
	Board      model.Board
	Content    *string
	SourceDate *model.Date
	Reason     string
}

type Options struct {
	Store    db.Store
	Audit    *audit.Log
	Catalog  *model.Catalog
	Now      func() time.Time
	Snapshot SnapshotRefresher
	Notifier notify.Notifier
}

type Manager struct {
	store    db.Store
	audit    *audit.Log
	catalog  *model.Catalog
	now      func() time.Time
	snapshot SnapshotRefresher
	notifier notify.Notifier
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		store:    opts.Store,
		audit:    opts.Audit,
		catalog:  opts.Catalog,
		now:      opts.Now,
		snapshot: opts.Snapshot,
		notifier: opts.Notifier,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.catalog == nil {
		m.catalog = model.DefaultCatalog()
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	if m.audit == nil {
		m.audit = audit.New(m.store, m.now)
	}
	return m
}

// Apply makes a new override active for the board, superseding any prior
// one in the same transaction.
func (m *Manager) Apply(ctx context.Context, req ApplyRequest, actor string) (*model.Override, error) {
	if !m.catalog.HasBoard(req.Board) {
		return nil, apperr.Validation("unknown board %q", req.Board)
	}

	var content string
	switch {
	case req.Content != nil && strings.TrimSpace(*req.Content) != "":
		content = *req.Content
	case req.SourceDate != nil:
		src, err := m.store.GetEntry(ctx, *req.SourceDate, req.Board)
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.NotFound("no %s card scheduled on %s", req.Board, req.SourceDate)
		}
		if err != nil {
			return nil, fmt.Errorf("load source card: %w", err)
		}
		content = src.Content
	default:
		return nil, apperr.Validation("override needs content or a source date")
	}

	var (
		created *model.Override
		err     error
	)
	for attempt := 1; attempt <= applyAttempts; attempt++ {
		created, err = m.apply(ctx, req, content, actor)
		if !errors.Is(err, db.ErrConflict) {
			break
		}
		log.Warn().Str("board", string(req.Board)).Int("attempt", attempt).Msg("override apply raced, retrying")
	}
	if errors.Is(err, db.ErrConflict) {
		return nil, apperr.Conflict("another override was applied to %s concurrently", req.Board)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("board", string(req.Board)).Str("override_id", created.ID).Str("actor", actor).Msg("override applied")
	m.afterChange(ctx, req.Board)
	return created, nil
}

func (m *Manager) apply(ctx context.Context, req ApplyRequest, content, actor string) (*model.Override, error) {
	now := m.now().UTC()
	o := &model.Override{
		ID:          uuid.NewString(),
		Board:       req.Board,
		Content:     content,
		ContentHash: model.HashContent(content),
		Reason:      strings.TrimSpace(req.Reason),
		SourceDate:  req.SourceDate,
		AppliedAt:   now,
		AppliedBy:   actor,
	}

	err := m.store.WithTx(ctx, func(tx db.Tx) error {
		prev, err := tx.GetActiveOverride(ctx, req.Board)
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := m.deactivate(ctx, tx, prev, now, actor, model.ClearSuperseded); err != nil {
				return err
			}
		}

		if err := tx.InsertOverride(ctx, o); err != nil {
			return err
		}
		details := model.Details{
			"override_id":  o.ID,
			"reason":       o.Reason,
			"content_hash": o.ContentHash,
		}
		if o.SourceDate != nil {
			details["source_date"] = o.SourceDate.String()
		}
		if prev != nil {
			details["supersedes"] = prev.ID
		}
		return m.audit.Record(ctx, tx, audit.Entry{
			Action:  model.ActionOverride,
			Board:   audit.BoardPtr(req.Board),
			Details: details,
			Actor:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (m *Manager) deactivate(ctx context.Context, tx db.Tx, o *model.Override, at time.Time, actor, reason string) error {
	ok, err := tx.DeactivateOverride(ctx, o.ID, at, actor, reason)
	if err != nil {
		return err
	}
	if !ok {
		return db.ErrConflict
	}
	return m.audit.Record(ctx, tx, audit.Entry{
		Action: model.ActionOverrideClear,
		Board:  audit.BoardPtr(o.Board),
		Details: model.Details{
			"override_id": o.ID,
			"reason":      reason,
			"applied_at":  o.AppliedAt.UTC().Format(time.RFC3339),
		},
		Actor: actor,
	})
}

// Clear deactivates the board's override. It reports false when none was
// active.
func (m *Manager) Clear(ctx context.Context, board model.Board, actor string) (bool, error) {
	if !m.catalog.HasBoard(board) {
		return false, apperr.Validation("unknown board %q", board)
	}

	cleared := false
	err := m.store.WithTx(ctx, func(tx db.Tx) error {
		o, err := tx.GetActiveOverride(ctx, board)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := m.deactivate(ctx, tx, o, m.now().UTC(), actor, model.ClearManual); err != nil {
			return err
		}
		cleared = true
		return nil
	})
	if errors.Is(err, db.ErrConflict) {
		// Someone else cleared it between our read and update.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cleared {
		log.Info().Str("board", string(board)).Str("actor", actor).Msg("override cleared")
		m.afterChange(ctx, board)
	}
	return cleared, nil
}

// ExpireBefore clears every active override applied before boundary, each in
// its own transaction with an override-clear audit. It does not refresh the
// snapshot; the caller does that once for the whole batch.
func (m *Manager) ExpireBefore(ctx context.Context, boundary time.Time, actor string) ([]model.Override, error) {
	active, err := m.store.ListActiveOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}

	var expired []model.Override
	var errs []error
	for _, o := range active {
		if !o.AppliedAt.Before(boundary) {
			continue
		}
		err := m.store.WithTx(ctx, func(tx db.Tx) error {
			return m.deactivate(ctx, tx, &o, m.now().UTC(), actor, model.ClearRotation)
		})
		if errors.Is(err, db.ErrConflict) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("expire override %s: %w", o.ID, err))
			continue
		}
		expired = append(expired, o)
	}
	return expired, errors.Join(errs...)
}

// Active returns the board's active override, or nil.
func (m *Manager) Active(ctx context.Context, board model.Board) (*model.Override, error) {
	o, err := m.store.GetActiveOverride(ctx, board)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return o, err
}

func (m *Manager) ListActive(ctx context.Context) ([]model.Override, error) {
	return m.store.ListActiveOverrides(ctx)
}

func (m *Manager) afterChange(ctx context.Context, board model.Board) {
	if m.snapshot != nil {
		_ = m.snapshot.Refresh(ctx)
	}
	m.notifier.BoardChanged(ctx, board, notify.ReasonOverride)
}
