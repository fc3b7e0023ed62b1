package schedule

import (
	"context"
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

type countingRefresher struct{ calls int }

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls++
	return nil
}

type fixture struct {
	svc      *Service
	store    db.Store
	audit    *audit.Log
	snapshot *countingRefresher
	notified []model.Board
}

// newFixture pins "now" to 2025-06-02 10:00 in Chicago.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := func() time.Time { return time.Date(2025, time.June, 2, 10, 0, 0, 0, loc) }

	f := &fixture{store: db.OpenTestStore(t), snapshot: &countingRefresher{}}
	f.audit = audit.New(f.store, now)
	f.svc = NewService(Options{
		Store:    f.store,
		Audit:    f.audit,
		Catalog:  model.DefaultCatalog(),
		Location: loc,
		Now:      now,
		Snapshot: f.snapshot,
		Notifier: notify.Func(func(_ context.Context, b model.Board, _ string) {
			f.notified = append(f.notified, b)
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

func d(s string) model.Date { return model.MustParseDate(s) }

func card(date string, board model.Board, content string) EntryInput {
	return EntryInput{Date: d(date), Board: board, Title: "WOD " + date, Content: content}
}

func TestPushUpsertsAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.svc.Push(ctx, []EntryInput{
		card("2025-06-02", model.BoardMain, "<h1>Fran</h1>"),
		card("2025-06-03", model.BoardMod, "<h1>Cindy</h1>"),
	}, "coach")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, model.VersionRx, saved[0].Version, "mainboard defaults to rx")
	assert.Equal(t, model.VersionMod, saved[1].Version, "modboard defaults to mod")
	assert.Equal(t, model.HashContent("<h1>Fran</h1>"), saved[0].ContentHash)

	assert.Equal(t, 2, f.auditCount(t, model.ActionPush))
	assert.Equal(t, 1, f.snapshot.calls)
	assert.Equal(t, []model.Board{model.BoardMain}, f.notified, "only today's board is notified")

	// Second push to the same key replaces it.
	_, err = f.svc.Push(ctx, []EntryInput{card("2025-06-02", model.BoardMain, "<h1>Grace</h1>")}, "coach")
	require.NoError(t, err)
	got, err := f.svc.Get(ctx, model.BoardMain, d("2025-06-02"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "<h1>Grace</h1>", got.Content)
	assert.Equal(t, saved[0].ID, got.ID)

	page, err := f.svc.Range(ctx, RangeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestPushLastDuplicateWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Push(ctx, []EntryInput{
		card("2025-06-04", model.BoardMain, "first"),
		card("2025-06-04", model.BoardMain, "second"),
	}, "coach")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, model.BoardMain, d("2025-06-04"))
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
}

func TestPushValidation(t *testing.T) {
	cases := map[string]struct {
		inputs []EntryInput
		index  int
	}{
		"past date": {
			inputs: []EntryInput{card("2025-06-02", model.BoardMain, "ok"), card("2025-06-01", model.BoardMain, "old")},
			index:  1,
		},
		"unknown board": {
			inputs: []EntryInput{card("2025-06-03", "lobby", "x")},
		},
		"unknown version": {
			inputs: []EntryInput{{Date: d("2025-06-03"), Board: model.BoardMain, Version: "elite", Title: "t", Content: "c"}},
		},
		"empty title": {
			inputs: []EntryInput{{Date: d("2025-06-03"), Board: model.BoardMain, Title: "  ", Content: "c"}},
		},
		"empty content": {
			inputs: []EntryInput{{Date: d("2025-06-03"), Board: model.BoardMain, Title: "t"}},
		},
		"span too long": {
			inputs: []EntryInput{card("2025-06-02", model.BoardMain, "a"), card("2025-07-03", model.BoardMain, "b")},
			index:  1,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Push(context.Background(), tc.inputs, "coach")
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			idx, ok := apperr.IndexOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.index, idx)

			page, err := f.svc.Range(context.Background(), RangeQuery{})
			require.NoError(t, err)
			assert.Zero(t, page.Total, "nothing persisted")
			assert.Zero(t, f.auditCount(t, model.ActionPush), "nothing audited")
			assert.Zero(t, f.snapshot.calls)
		})
	}

	t.Run("empty", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Push(context.Background(), nil, "coach")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestPushAcceptsThirtyOneDays(t *testing.T) {
	f := newFixture(t)
	var inputs []EntryInput
	start := d("2025-06-02")
	for i := 0; i < MaxPushDays; i++ {
		inputs = append(inputs, EntryInput{Date: start.AddDays(i), Board: model.BoardMain, Title: "t", Content: "c"})
	}
	saved, err := f.svc.Push(context.Background(), inputs, "coach")
	require.NoError(t, err)
	assert.Len(t, saved, MaxPushDays)
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Push(ctx, []EntryInput{card("2025-06-02", model.BoardMain, "a")}, "coach")
	require.NoError(t, err)

	title := "Murph"
	scaled := model.VersionScaled
	got, err := f.svc.Edit(ctx, d("2025-06-02"), model.BoardMain, model.EntryPatch{Title: &title, Version: &scaled}, "coach")
	require.NoError(t, err, "today is editable")
	assert.Equal(t, "Murph", got.Title)
	assert.Equal(t, model.VersionScaled, got.Version)

	page, err := f.audit.Query(ctx, audit.Filter{Action: ptr(model.ActionEdit)})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.ElementsMatch(t, []any{"title", "version"}, page.Records[0].Details["changes"])

	_, err = f.svc.Edit(ctx, d("2025-06-01"), model.BoardMain, model.EntryPatch{Title: &title}, "coach")
	assert.True(t, apperr.Is(err, apperr.KindImmutable))

	_, err = f.svc.Edit(ctx, d("2025-06-05"), model.BoardMain, model.EntryPatch{Title: &title}, "coach")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	bad := model.Version("elite")
	_, err = f.svc.Edit(ctx, d("2025-06-02"), model.BoardMain, model.EntryPatch{Version: &bad}, "coach")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	blank := "   "
	_, err = f.svc.Edit(ctx, d("2025-06-02"), model.BoardMain, model.EntryPatch{Title: &blank}, "coach")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "whitespace title")
	_, err = f.svc.Edit(ctx, d("2025-06-02"), model.BoardMain, model.EntryPatch{Content: &blank}, "coach")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "whitespace content")

	padded := "  Cindy "
	got, err = f.svc.Edit(ctx, d("2025-06-02"), model.BoardMain, model.EntryPatch{Title: &padded}, "coach")
	require.NoError(t, err)
	assert.Equal(t, "Cindy", got.Title)
}

func TestEditPastDateLeavesEntryUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := &model.ScheduleEntry{
		ScheduleDate: d("2025-05-30"), Board: model.BoardMod, Version: model.VersionMod,
		Title: "old", Content: "old", ContentHash: model.HashContent("old"),
	}
	_, err := f.store.UpsertEntry(ctx, past)
	require.NoError(t, err)

	title := "new"
	_, err = f.svc.Edit(ctx, past.ScheduleDate, past.Board, model.EntryPatch{Title: &title}, "coach")
	require.True(t, apperr.Is(err, apperr.KindImmutable))

	got, err := f.svc.Get(ctx, past.Board, past.ScheduleDate)
	require.NoError(t, err)
	assert.Equal(t, "old", got.Title)
	assert.Zero(t, f.auditCount(t, model.ActionEdit))
}

func TestDeleteDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Push(ctx, []EntryInput{
		card("2025-06-03", model.BoardMain, "a"),
		card("2025-06-03", model.BoardMod, "b"),
	}, "coach")
	require.NoError(t, err)

	n, err := f.svc.DeleteDay(ctx, d("2025-06-03"), "coach")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.auditCount(t, model.ActionDelete))

	_, err = f.svc.DeleteDay(ctx, d("2025-06-03"), "coach")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.DeleteDay(ctx, d("2025-06-01"), "coach")
	assert.True(t, apperr.Is(err, apperr.KindImmutable))
}

func TestClone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Push(ctx, []EntryInput{
		card("2025-06-03", model.BoardMain, "a"),
		card("2025-06-03", model.BoardMod, "b"),
	}, "coach")
	require.NoError(t, err)

	mod := model.BoardMod
	cloned, err := f.svc.Clone(ctx, d("2025-06-03"), d("2025-06-10"), &mod, "coach")
	require.NoError(t, err)
	require.Len(t, cloned, 1)
	assert.Equal(t, "b", cloned[0].Content)

	cloned, err = f.svc.Clone(ctx, d("2025-06-03"), d("2025-06-11"), nil, "coach")
	require.NoError(t, err)
	assert.Len(t, cloned, 2)
	assert.Equal(t, 3, f.auditCount(t, model.ActionClone), "one per copied board")

	_, err = f.svc.Clone(ctx, d("2025-06-03"), d("2025-06-01"), nil, "coach")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Clone(ctx, d("2025-06-20"), d("2025-06-21"), nil, "coach")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCloneWeekCopiesPresentDaysOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Source week 2025-06-02..08 has cards on the first five days only.
	var inputs []EntryInput
	for i := 0; i < 5; i++ {
		inputs = append(inputs, EntryInput{Date: d("2025-06-02").AddDays(i), Board: model.BoardMain, Title: "t", Content: "c"})
	}
	_, err := f.svc.Push(ctx, inputs, "coach")
	require.NoError(t, err)

	// Target days 6 and 7 already hold cards that must survive.
	_, err = f.svc.Push(ctx, []EntryInput{
		card("2025-06-14", model.BoardMain, "keep-6"),
		card("2025-06-15", model.BoardMain, "keep-7"),
	}, "coach")
	require.NoError(t, err)
	clonesBefore := f.auditCount(t, model.ActionClone)

	res, err := f.svc.CloneWeek(ctx, d("2025-06-02"), d("2025-06-09"), "coach")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
	require.Len(t, res.Days, 5)
	assert.Equal(t, "2025-06-09", res.Days[0].String())
	assert.Equal(t, "2025-06-13", res.Days[4].String())

	for date, want := range map[string]string{"2025-06-14": "keep-6", "2025-06-15": "keep-7"} {
		got, err := f.svc.Get(ctx, model.BoardMain, d(date))
		require.NoError(t, err)
		assert.Equal(t, want, got.Content)
	}
	assert.Equal(t, clonesBefore+1, f.auditCount(t, model.ActionClone), "one summary record")

	_, err = f.svc.CloneWeek(ctx, d("2025-07-07"), d("2025-07-14"), "coach")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.CloneWeek(ctx, d("2025-06-02"), d("2025-05-26"), "coach")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestForDateAndRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Push(ctx, []EntryInput{
		card("2025-06-03", model.BoardMain, "a"),
		card("2025-06-03", model.BoardMod, "b"),
		card("2025-06-05", model.BoardMain, "c"),
	}, "coach")
	require.NoError(t, err)

	day, err := f.svc.ForDate(ctx, d("2025-06-03"))
	require.NoError(t, err)
	assert.Len(t, day.Entries, 2)
	assert.Equal(t, "b", day.Entries[model.BoardMod].Content)

	start, end := d("2025-06-04"), d("2025-06-03")
	_, err = f.svc.Range(ctx, RangeQuery{Start: &start, End: &end})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	page, err := f.svc.Range(ctx, RangeQuery{PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "c", page.Entries[0].Content)

	missing, err := f.svc.Get(ctx, model.BoardMod, d("2025-06-05"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func ptr[T any](v T) *T { return &v }
