// Package rotation performs the daily cutover: expire stale overrides,
// commit each board's scheduled card for the new day, and record the run.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/override"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/resolve"
)

type State string

const (
	StateIdle     State = "idle"
	StateRotating State = "rotating"
)

const (
	DefaultCheckInterval = 30 * time.Second
	systemActor          = "system"
)

// Outcomes of a rotation attempt that did no work.
const (
	SkipBusy           = "busy"
	SkipAlreadyRotated = "already-rotated"
)

type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

type Options struct {
	Store         db.Store
	Audit         *audit.Log
	Engine        *resolve.Engine
	Overrides     *override.Manager
	Snapshot      SnapshotRefresher
	Notifier      notify.Notifier
	Catalog       *model.Catalog
	Location      *time.Location
	Hour          int
	Minute        int
	CheckInterval time.Duration
	LockPath      string
	Now           func() time.Time
}

// Result describes one Rotate call. Rotation is nil when the run was skipped.
type Result struct {
	Rotation *model.Rotation `json:"rotation,omitempty"`
	Skipped  string          `json:"skipped,omitempty"`
}

type Scheduler struct {
	store     db.Store
	audit     *audit.Log
	engine    *resolve.Engine
	overrides *override.Manager
	snapshot  SnapshotRefresher
	notifier  notify.Notifier
	catalog   *model.Catalog
	loc       *time.Location
	hour      int
	minute    int
	interval  time.Duration
	lockPath  string
	now       func() time.Time

	running atomic.Bool
	done    chan struct{}
}

func New(opts Options) *Scheduler {
	s := &Scheduler{
		store:     opts.Store,
		audit:     opts.Audit,
		engine:    opts.Engine,
		overrides: opts.Overrides,
		snapshot:  opts.Snapshot,
		notifier:  opts.Notifier,
		catalog:   opts.Catalog,
		loc:       opts.Location,
		hour:      opts.Hour,
		minute:    opts.Minute,
		interval:  opts.CheckInterval,
		lockPath:  opts.LockPath,
		now:       opts.Now,
		done:      make(chan struct{}),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.interval <= 0 {
		s.interval = DefaultCheckInterval
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

func (s *Scheduler) State() State {
	if s.running.Load() {
		return StateRotating
	}
	return StateIdle
}

// Boundary is the instant the given day's rotation is due.
func (s *Scheduler) Boundary(day model.Date) time.Time {
	return day.At(s.hour, s.minute, s.loc)
}

// RotationDay is the local date of the most recent boundary at or before
// instant.
func (s *Scheduler) RotationDay(instant time.Time) model.Date {
	day := model.DateIn(instant, s.loc)
	if instant.Before(s.Boundary(day)) {
		day = day.AddDays(-1)
	}
	return day
}

// NextRotation is the first boundary strictly after now.
func (s *Scheduler) NextRotation(now time.Time) time.Time {
	return s.Boundary(s.RotationDay(now).AddDays(1))
}

// Start runs the liveness check immediately, catching up the current
// rotation day if it was missed, then repeats it every check interval until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if _, err := s.Check(ctx); err != nil {
		log.Error().Err(err).Msg("startup rotation check failed")
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Check(ctx); err != nil {
					log.Error().Err(err).Msg("rotation check failed")
				}
			}
		}
	}()
	log.Info().
		Dur("interval", s.interval).
		Time("next_rotation", s.NextRotation(s.now())).
		Msg("rotation scheduler started")
}

// Done is closed once the ticker loop started by Start has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Check rotates the current rotation day when it has no record yet. It
// returns nil when there was nothing to do.
func (s *Scheduler) Check(ctx context.Context) (*Result, error) {
	day := s.RotationDay(s.now())
	_, err := s.store.GetRotation(ctx, day)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("look up rotation %s: %w", day, err)
	}
	return s.Rotate(ctx, day, s.Boundary(day))
}

// RunNow rotates the current rotation day; a day already rotated is a no-op.
func (s *Scheduler) RunNow(ctx context.Context) (*Result, error) {
	day := s.RotationDay(s.now())
	return s.Rotate(ctx, day, s.Boundary(day))
}

// Rotate performs the cutover for day. Only one run proceeds at a time per
// process and per lock file; a concurrent call is skipped, not queued.
func (s *Scheduler) Rotate(ctx context.Context, day model.Date, boundary time.Time) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		log.Info().Str("rotation_date", day.String()).Msg("rotation already in progress, skipping")
		return &Result{Skipped: SkipBusy}, nil
	}
	defer s.running.Store(false)

	unlock, ok, err := s.lock()
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info().Str("lock", s.lockPath).Msg("rotation lock held elsewhere, skipping")
		return &Result{Skipped: SkipBusy}, nil
	}
	defer unlock()

	rot := &model.Rotation{
		RotationDate: day,
		RunID:        uuid.NewString(),
		Boundary:     boundary.UTC(),
		StartedAt:    s.now().UTC(),
	}
	claimed, err := s.store.ClaimRotation(ctx, rot)
	if err != nil {
		return nil, fmt.Errorf("claim rotation %s: %w", day, err)
	}
	if !claimed {
		log.Debug().Str("rotation_date", day.String()).Msg("rotation day already claimed")
		return &Result{Skipped: SkipAlreadyRotated}, nil
	}

	logger := log.With().Str("rotation_date", day.String()).Str("run_id", rot.RunID).Logger()
	logger.Info().Time("boundary", boundary).Msg("rotation started")

	if s.overrides != nil {
		expired, err := s.overrides.ExpireBefore(ctx, boundary, systemActor)
		rot.ClearedOverrides = len(expired)
		if err != nil {
			rot.Failed++
			logger.Error().Err(err).Msg("clearing overrides failed")
			s.auditFailure(ctx, rot, nil, "expire-overrides", err)
		}
	}

	for _, board := range s.catalog.Boards() {
		outcome, err := s.commitBoard(ctx, board, day, boundary)
		if err != nil {
			rot.Failed++
			logger.Error().Err(err).Str("board", string(board)).Msg("rotation board failed")
			s.auditFailure(ctx, rot, audit.BoardPtr(board), "commit", err)
			continue
		}
		if outcome {
			rot.Committed++
		} else {
			rot.Skipped++
		}
	}

	if s.snapshot != nil {
		_ = s.snapshot.Refresh(ctx)
	}

	finished := s.now().UTC()
	rot.FinishedAt = &finished
	if err := s.audit.Append(ctx, audit.Entry{
		Action:       model.ActionRotation,
		ScheduleDate: audit.DatePtr(day),
		Details: model.Details{
			"run_id":            rot.RunID,
			"boundary":          boundary.UTC().Format(time.RFC3339),
			"committed":         rot.Committed,
			"skipped":           rot.Skipped,
			"failed":            rot.Failed,
			"cleared_overrides": rot.ClearedOverrides,
		},
		Actor: systemActor,
	}); err != nil {
		logger.Error().Err(err).Msg("rotation audit failed")
	}
	if err := s.store.FinishRotation(ctx, rot); err != nil {
		logger.Error().Err(err).Msg("recording rotation outcome failed")
	}

	for _, board := range s.catalog.Boards() {
		s.notifier.BoardChanged(ctx, board, notify.ReasonRotation)
	}

	logger.Info().
		Int("committed", rot.Committed).
		Int("skipped", rot.Skipped).
		Int("failed", rot.Failed).
		Int("cleared_overrides", rot.ClearedOverrides).
		Msg("rotation finished")
	return &Result{Rotation: rot}, nil
}

// commitBoard writes the board's resolved state for day. It reports false
// when nothing is scheduled, in which case any stale row is removed.
func (s *Scheduler) commitBoard(ctx context.Context, board model.Board, day model.Date, boundary time.Time) (bool, error) {
	res, err := s.engine.ResolveScheduled(ctx, board, boundary)
	if err != nil {
		return false, err
	}
	if res == nil {
		if _, err := s.store.DeleteResolved(ctx, board); err != nil {
			return false, fmt.Errorf("clear resolved state: %w", err)
		}
		return false, nil
	}

	a := res.Artifact
	err = s.store.SaveResolved(ctx, &model.ResolvedState{
		Board:        board,
		SourceLayer:  res.Layer,
		Title:        a.Title,
		Content:      a.Content,
		ContentHash:  a.ContentHash,
		EntryRef:     a.Ref,
		RotationDate: &day,
		ResolvedAt:   s.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("commit resolved state: %w", err)
	}
	return true, nil
}

// lock takes the cross-process rotation lock without blocking.
func (s *Scheduler) lock() (func(), bool, error) {
	if s.lockPath == "" {
		return func() {}, true, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(s.lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire rotation lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			log.Warn().Err(err).Msg("failed to release rotation lock")
		}
	}, true, nil
}

// auditFailure records a rotation-board-failure. board is nil when the
// failing stage is not tied to one board.
func (s *Scheduler) auditFailure(ctx context.Context, rot *model.Rotation, board *model.Board, stage string, cause error) {
	err := s.audit.Append(ctx, audit.Entry{
		Action:       model.ActionRotationBoardFailure,
		Board:        board,
		ScheduleDate: audit.DatePtr(rot.RotationDate),
		Details:      model.Details{"run_id": rot.RunID, "stage": stage, "error": cause.Error()},
		Actor:        systemActor,
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", rot.RunID).Str("stage", stage).Msg("rotation failure audit failed")
	}
}
