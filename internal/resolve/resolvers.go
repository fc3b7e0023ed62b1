package resolve

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/snapshot"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/storage"
)

// Resolver is one stage of the fallback chain. TryResolve returns (nil, nil)
// when the stage has nothing for the board; an error means the stage could
// not answer at all.
type Resolver interface {
	Layer() model.Layer
	Name() string
	TryResolve(ctx context.Context, board model.Board, date model.Date) (*model.Artifact, error)
}

type overrideResolver struct{ store db.Queries }

func (overrideResolver) Layer() model.Layer { return model.LayerLive }
func (overrideResolver) Name() string       { return "override" }

func (r overrideResolver) TryResolve(ctx context.Context, board model.Board, _ model.Date) (*model.Artifact, error) {
	o, err := r.store.GetActiveOverride(ctx, board)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	title := o.Reason
	if title == "" {
		title = "Override"
	}
	return &model.Artifact{Title: title, Content: o.Content, ContentHash: o.ContentHash, Ref: o.Ref()}, nil
}

type calendarResolver struct{ store db.Queries }

func (calendarResolver) Layer() model.Layer { return model.LayerLive }
func (calendarResolver) Name() string       { return "calendar" }

func (r calendarResolver) TryResolve(ctx context.Context, board model.Board, date model.Date) (*model.Artifact, error) {
	e, err := r.store.GetEntry(ctx, date, board)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.Artifact{Title: e.Title, Content: e.Content, ContentHash: e.ContentHash, Ref: e.Ref()}, nil
}

// snapshotResolver reads the on-disk snapshot on every call so a rewrite is
// picked up without coordination.
type snapshotResolver struct {
	path      string
	overrides bool
}

func (snapshotResolver) Layer() model.Layer { return model.LayerSnapshot }
func (snapshotResolver) Name() string       { return "snapshot" }

func (r snapshotResolver) TryResolve(_ context.Context, board model.Board, date model.Date) (*model.Artifact, error) {
	if r.path == "" {
		return nil, nil
	}
	doc, err := snapshot.Read(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		// A damaged snapshot has no value; it is rewritten on the next mutation.
		log.Warn().Err(err).Str("path", r.path).Msg("ignoring unreadable snapshot")
		return nil, nil
	}
	// An override in the snapshot belongs to the day it was written; it must
	// not outlive a rotation that could not run.
	if r.overrides && doc.Today == date {
		if o, ok := doc.Override(board); ok {
			return &model.Artifact{
				Title: o.Reason, Content: o.Content, ContentHash: o.ContentHash,
				Ref: &model.EntryRef{Kind: model.RefOverride, ID: o.ID},
			}, nil
		}
	}
	if e, ok := doc.Entry(date, board); ok {
		ref := (&model.ScheduleEntry{ID: e.ID, ScheduleDate: e.Date}).Ref()
		return &model.Artifact{Title: e.Title, Content: e.Content, ContentHash: e.ContentHash, Ref: ref}, nil
	}
	return nil, nil
}

type staticCacheResolver struct{ cache storage.Storage }

func (staticCacheResolver) Layer() model.Layer { return model.LayerStaticCache }
func (staticCacheResolver) Name() string       { return "static-cache" }

func (r staticCacheResolver) TryResolve(ctx context.Context, board model.Board, _ model.Date) (*model.Artifact, error) {
	if r.cache == nil {
		return nil, nil
	}
	a, err := r.cache.Load(ctx, board)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return a, err
}
