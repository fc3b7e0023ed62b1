package override

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

type fixture struct {
	mgr      *Manager
	store    db.Store
	audit    *audit.Log
	snapshot *countingRefresher
	now      time.Time
	mu       sync.Mutex
	notified []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    db.OpenTestStore(t),
		snapshot: &countingRefresher{},
		now:      time.Date(2025, time.June, 2, 15, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.now }
	f.audit = audit.New(f.store, now)
	f.mgr = NewManager(Options{
		Store:    f.store,
		Audit:    f.audit,
		Catalog:  model.DefaultCatalog(),
		Now:      now,
		Snapshot: f.snapshot,
		Notifier: notify.Func(func(_ context.Context, b model.Board, reason string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.notified = append(f.notified, string(b)+":"+reason)
		}),
	})
	return f
}

func (f *fixture) auditCount(t *testing.T, action model.Action) int {
	t.Helper()
	page, err := f.audit.Query(context.Background(), audit.Filter{Action: &action})
	require.NoError(t, err)
	return page.Total
}

func str(s string) *string { return &s }

func TestApplyAndSupersede(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMain, Content: str("<p>storm</p>"), Reason: "weather"}, "ops")
	require.NoError(t, err)
	assert.True(t, first.Active)
	assert.Equal(t, model.HashContent("<p>storm</p>"), first.ContentHash)

	second, err := f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMain, Content: str("<p>closed</p>")}, "ops")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := f.mgr.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	assert.Equal(t, 2, f.auditCount(t, model.ActionOverride))
	assert.Equal(t, 1, f.auditCount(t, model.ActionOverrideClear))

	action := model.ActionOverrideClear
	page, err := f.audit.Query(ctx, audit.Filter{Action: &action})
	require.NoError(t, err)
	assert.Equal(t, model.ClearSuperseded, page.Records[0].Details["reason"])
	assert.Equal(t, first.ID, page.Records[0].Details["override_id"])

	assert.Equal(t, 2, f.snapshot.calls)
	assert.Equal(t, []string{"mainboard:override", "mainboard:override"}, f.notified)
}

func TestApplyFromSourceDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.UpsertEntry(ctx, &model.ScheduleEntry{
		ScheduleDate: model.MustParseDate("2025-06-05"), Board: model.BoardMod, Version: model.VersionMod,
		Title: "Thursday", Content: "<p>thursday</p>", ContentHash: model.HashContent("<p>thursday</p>"),
		CreatedAt: f.now, UpdatedAt: f.now,
	})
	require.NoError(t, err)

	src := model.MustParseDate("2025-06-05")
	o, err := f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMod, SourceDate: &src}, "ops")
	require.NoError(t, err)
	assert.Equal(t, "<p>thursday</p>", o.Content)
	require.NotNil(t, o.SourceDate)
	assert.Equal(t, src, *o.SourceDate)

	missing := model.MustParseDate("2025-06-06")
	_, err = f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMod, SourceDate: &missing}, "ops")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Apply(ctx, ApplyRequest{Board: "lobby", Content: str("x")}, "ops")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMain, Content: str("   ")}, "ops")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Zero(t, f.auditCount(t, model.ActionOverride))
}

func TestConcurrentApplyLeavesOneActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMain, Content: str("<p>x</p>")}, "ops")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperr.Is(err, apperr.KindConflict), "unexpected error: %v", err)
		}
	}
	require.Positive(t, succeeded)

	active, err := f.mgr.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, succeeded, f.auditCount(t, model.ActionOverride))
	assert.Equal(t, succeeded-1, f.auditCount(t, model.ActionOverrideClear))
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cleared, err := f.mgr.Clear(ctx, model.BoardMain, "ops")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Zero(t, f.auditCount(t, model.ActionOverrideClear))

	_, err = f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMain, Content: str("<p>x</p>")}, "ops")
	require.NoError(t, err)

	cleared, err = f.mgr.Clear(ctx, model.BoardMain, "ops")
	require.NoError(t, err)
	assert.True(t, cleared)

	o, err := f.mgr.Active(ctx, model.BoardMain)
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.Equal(t, 1, f.auditCount(t, model.ActionOverrideClear))
}

func TestExpireBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMain, Content: str("<p>old</p>")}, "ops")
	require.NoError(t, err)

	boundary := f.now.Add(time.Hour)
	f.now = boundary.Add(time.Minute)
	late, err := f.mgr.Apply(ctx, ApplyRequest{Board: model.BoardMod, Content: str("<p>new</p>")}, "ops")
	require.NoError(t, err)

	expired, err := f.mgr.ExpireBefore(ctx, boundary, "system")
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, model.BoardMain, expired[0].Board)

	active, err := f.mgr.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, late.ID, active[0].ID, "overrides applied after the boundary survive")

	action := model.ActionOverrideClear
	page, err := f.audit.Query(ctx, audit.Filter{Action: &action})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, model.ClearRotation, page.Records[0].Details["reason"])
}
