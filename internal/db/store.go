// exposes a Store interface that is passed to services w/ param requirements
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// EntryFilter narrows schedule listings. Zero values mean "no bound".
type EntryFilter struct {
	Start  *model.Date
	End    *model.Date
	Board  *model.Board
	Limit  int
	Offset int
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	Action *model.Action
	Board  *model.Board
	Limit  int
	Offset int
}

// Queries is the set of statements that can run on the pool or inside a transaction.
type Queries interface {
	// schedule functions
	UpsertEntry(ctx context.Context, e *model.ScheduleEntry) (*model.ScheduleEntry, error)
	GetEntry(ctx context.Context, date model.Date, board model.Board) (*model.ScheduleEntry, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]model.ScheduleEntry, error)
	CountEntries(ctx context.Context, f EntryFilter) (int, error)
	UpdateEntry(ctx context.Context, e *model.ScheduleEntry) error
	DeleteEntriesForDate(ctx context.Context, date model.Date) ([]model.ScheduleEntry, error)

	// override functions
	InsertOverride(ctx context.Context, o *model.Override) error
	GetActiveOverride(ctx context.Context, board model.Board) (*model.Override, error)
	ListActiveOverrides(ctx context.Context) ([]model.Override, error)
	DeactivateOverride(ctx context.Context, id string, at time.Time, by, reason string) (bool, error)

	// resolved state functions
	GetResolved(ctx context.Context, board model.Board) (*model.ResolvedState, error)
	ListResolved(ctx context.Context) ([]model.ResolvedState, error)
	SaveResolved(ctx context.Context, s *model.ResolvedState) error
	SaveResolvedIfChanged(ctx context.Context, s *model.ResolvedState) (bool, error)
	DeleteResolved(ctx context.Context, board model.Board) (bool, error)

	// audit functions
	InsertAudit(ctx context.Context, rec *model.AuditRecord) error
	ListAudit(ctx context.Context, f AuditFilter) ([]model.AuditRecord, error)
	CountAudit(ctx context.Context, f AuditFilter) (int, error)

	// rotation functions
	ClaimRotation(ctx context.Context, r *model.Rotation) (bool, error)
	FinishRotation(ctx context.Context, r *model.Rotation) error
	GetRotation(ctx context.Context, date model.Date) (*model.Rotation, error)
	LatestRotation(ctx context.Context) (*model.Rotation, error)
}

// Tx is a Queries bound to one open transaction.
type Tx interface {
	Queries
}

type Store interface {
	Queries
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

type sqlStore struct {
	queries
	db *sqlx.DB
}

// compile-time check that sqlStore implements Store
var _ Store = (*sqlStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &sqlStore{queries: queries{ext: conn}, db: conn}
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("failed to roll back transaction")
			}
		}
	}()

	if err = fn(&queries{ext: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return translate(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Driver() string { return s.db.DriverName() }

func (s *sqlStore) Close() error { return s.db.Close() }

// queries runs statements against either the pool or a transaction.
type queries struct {
	ext sqlx.ExtContext
}

func (q *queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return translate(sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...))
}

func (q *queries) sel(ctx context.Context, dest any, query string, args ...any) error {
	return translate(sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...))
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// utc normalizes timestamps so both drivers store comparable values.
func utc(t time.Time) time.Time { return t.UTC() }
