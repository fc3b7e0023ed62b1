package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func seed(t *testing.T, store db.Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []struct {
		date  string
		board model.Board
	}{
		{"2025-06-01", model.BoardMain}, // yesterday: excluded
		{"2025-06-02", model.BoardMain},
		{"2025-06-09", model.BoardMod},
	} {
		content := "<p>" + e.date + "</p>"
		_, err := store.UpsertEntry(ctx, &model.ScheduleEntry{
			ScheduleDate: model.MustParseDate(e.date), Board: e.board, Version: model.VersionRx,
			Title: "WOD", Content: content, ContentHash: model.HashContent(content),
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.InsertOverride(ctx, &model.Override{
		ID: "ovr-1", Board: model.BoardMod, Content: "<p>closed</p>",
		ContentHash: model.HashContent("<p>closed</p>"), Reason: "storm", AppliedAt: time.Now(),
	}))
}

func TestRefreshWritesReadableDocument(t *testing.T) {
	loc := chicago(t)
	store := db.OpenTestStore(t)
	seed(t, store)
	now := func() time.Time { return time.Date(2025, time.June, 2, 9, 0, 0, 0, loc) }
	path := filepath.Join(t.TempDir(), "schedule_backup.json")
	w := NewWriter(store, audit.New(store, now), path, loc, now)

	require.NoError(t, w.Refresh(context.Background()))

	doc, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.Equal(t, "America/Chicago", doc.Timezone)
	assert.Equal(t, "2025-06-02", doc.Today.String())
	require.Len(t, doc.Entries, 2)

	e, ok := doc.Entry(model.MustParseDate("2025-06-02"), model.BoardMain)
	require.True(t, ok)
	assert.Equal(t, "<p>2025-06-02</p>", e.Content)

	_, ok = doc.Entry(model.MustParseDate("2025-06-01"), model.BoardMain)
	assert.False(t, ok, "past entries are not carried")

	o, ok := doc.Override(model.BoardMod)
	require.True(t, ok)
	assert.Equal(t, "storm", o.Reason)
}

func TestRefreshFailureIsAuditedNotFatal(t *testing.T) {
	loc := chicago(t)
	store := db.OpenTestStore(t)
	now := func() time.Time { return time.Date(2025, time.June, 2, 9, 0, 0, 0, loc) }
	log := audit.New(store, now)

	// A directory in place of the file makes the rename fail.
	path := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0o755))
	w := NewWriter(store, log, path, loc, now)

	err := w.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSnapshotWrite))

	action := model.ActionSnapshotWriteFailed
	page, qerr := log.Query(context.Background(), audit.Filter{Action: &action})
	require.NoError(t, qerr)
	assert.Equal(t, 1, page.Total)
}

func TestReadRejectsMalformed(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o644))
	_, err := Read(garbage)
	assert.Error(t, err)

	future := filepath.Join(dir, "v2.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version":2,"today":"2025-06-02"}`), 0o644))
	_, err = Read(future)
	assert.Error(t, err)

	_, err = Read(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
