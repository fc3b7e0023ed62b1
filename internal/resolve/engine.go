// Package resolve decides what a board shows at an instant by walking an
// ordered chain of sources until one answers.
package resolve

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/storage"
)

//go:embed splash.html
var splashHTML string

const DefaultLayerTimeout = 2 * time.Second

// Splash returns the branded card shown when nothing else resolves.
func Splash() *model.Artifact {
	return model.NewArtifact("Splash", splashHTML, nil)
}

// Resolution is the outcome of one walk of the chain.
type Resolution struct {
	Board      model.Board     `json:"board"`
	Layer      model.Layer     `json:"layer"`
	Artifact   *model.Artifact `json:"artifact"`
	ResolvedAt time.Time       `json:"resolved_at"`
	Source     string          `json:"source"`
}

type Options struct {
	Store        db.Store
	SnapshotPath string
	Cache        storage.Storage
	Location     *time.Location
	LayerTimeout time.Duration
	Now          func() time.Time
}

type Engine struct {
	store   db.Store
	cache   storage.Storage
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time

	chain     []Resolver
	scheduled []Resolver

	// cached holds the content hash this engine last wrote to the static
	// cache per board.
	cached sync.Map
}

func New(opts Options) *Engine {
	e := newEngine(opts)
	e.chain = []Resolver{
		overrideResolver{store: opts.Store},
		calendarResolver{store: opts.Store},
		snapshotResolver{path: opts.SnapshotPath, overrides: true},
		staticCacheResolver{cache: opts.Cache},
	}
	e.scheduled = []Resolver{
		calendarResolver{store: opts.Store},
		snapshotResolver{path: opts.SnapshotPath},
	}
	return e
}

// NewWithResolvers builds an engine over a custom chain; scheduled is the
// override-free chain used at rotation time.
func NewWithResolvers(opts Options, chain, scheduled []Resolver) *Engine {
	e := newEngine(opts)
	e.chain = chain
	e.scheduled = scheduled
	return e
}

func newEngine(opts Options) *Engine {
	e := &Engine{
		store:   opts.Store,
		cache:   opts.Cache,
		loc:     opts.Location,
		timeout: opts.LayerTimeout,
		now:     opts.Now,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.timeout <= 0 {
		e.timeout = DefaultLayerTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Date is the facility-local civil date of instant.
func (e *Engine) Date(instant time.Time) model.Date {
	return model.DateIn(instant, e.loc)
}

// Resolve always produces something to show. Layer 1 and 2 answers also
// refresh the static cache and the board's resolved state.
func (e *Engine) Resolve(ctx context.Context, board model.Board, instant time.Time) Resolution {
	date := e.Date(instant)
	for _, r := range e.chain {
		a, err := e.attempt(ctx, r, board, date)
		if err != nil || a == nil {
			continue
		}
		res := Resolution{Board: board, Layer: r.Layer(), Artifact: a, ResolvedAt: e.now(), Source: r.Name()}
		if res.Layer == model.LayerLive || res.Layer == model.LayerSnapshot {
			e.persist(ctx, res)
		}
		return res
	}
	return Resolution{Board: board, Layer: model.LayerSplash, Artifact: Splash(), ResolvedAt: e.now(), Source: "splash"}
}

// ResolveScheduled consults only the calendar and snapshot entries. It
// returns (nil, nil) when nothing is scheduled and an error when nothing
// answered and some source failed.
func (e *Engine) ResolveScheduled(ctx context.Context, board model.Board, instant time.Time) (*Resolution, error) {
	date := e.Date(instant)
	var errs []error
	for _, r := range e.scheduled {
		a, err := e.attempt(ctx, r, board, date)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if a != nil {
			return &Resolution{Board: board, Layer: r.Layer(), Artifact: a, ResolvedAt: e.now(), Source: r.Name()}, nil
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

type result struct {
	artifact *model.Artifact
	err      error
}

// attempt runs one resolver in its own goroutine under the layer timeout. A
// hung resolver is abandoned.
func (e *Engine) attempt(ctx context.Context, r Resolver, board model.Board, date model.Date) (*model.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		a, err := r.TryResolve(ctx, board, date)
		done <- result{artifact: a, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}
	if res.err != nil {
		err := apperr.Wrap(apperr.KindLayerUnavailable, fmt.Sprintf("%s layer unavailable", r.Name()), res.err)
		log.Warn().Err(res.err).
			Str("board", string(board)).
			Str("layer", r.Name()).
			Msg("resolution layer unavailable")
		return nil, err
	}
	if res.artifact != nil && strings.TrimSpace(res.artifact.Content) == "" {
		log.Warn().Str("board", string(board)).Str("layer", r.Name()).Msg("ignoring empty artifact")
		return nil, nil
	}
	if res.artifact != nil && res.artifact.ContentHash == "" {
		res.artifact.ContentHash = model.HashContent(res.artifact.Content)
	}
	return res.artifact, nil
}

// persist refreshes the static cache and resolved state after a layer 1 or 2
// answer. Both are best effort.
func (e *Engine) persist(ctx context.Context, res Resolution) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	a := res.Artifact

	if e.cache != nil {
		if prev, ok := e.cached.Load(res.Board); !ok || prev.(string) != a.ContentHash {
			if err := e.cache.Save(ctx, res.Board, a); err != nil {
				log.Warn().Err(err).Str("board", string(res.Board)).Msg("static cache save failed")
			} else {
				e.cached.Store(res.Board, a.ContentHash)
			}
		}
	}

	if e.store == nil {
		return
	}
	state := &model.ResolvedState{
		Board: res.Board, SourceLayer: res.Layer, Title: a.Title, Content: a.Content,
		ContentHash: a.ContentHash, EntryRef: a.Ref, ResolvedAt: res.ResolvedAt,
	}
	if prev, err := e.store.GetResolved(ctx, res.Board); err == nil {
		state.RotationDate = prev.RotationDate
	}
	if _, err := e.store.SaveResolvedIfChanged(ctx, state); err != nil {
		log.Warn().Err(err).Str("board", string(res.Board)).Msg("resolved state update failed")
	}
}
