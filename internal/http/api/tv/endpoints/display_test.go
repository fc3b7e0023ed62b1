package endpoints

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/config"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/override"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/schedule"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

func newDisplay(t *testing.T) (*gin.Engine, *app.App) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SnapshotPath = filepath.Join(dir, "schedule_backup.json")
	cfg.StaticCacheDir = filepath.Join(dir, "cache")
	cfg.RotationLockPath = filepath.Join(dir, "rotation.lock")
	require.NoError(t, cfg.Validate())

	now := time.Date(2025, time.June, 2, 10, 0, 0, 0, cfg.Location())
	a := app.Build(&cfg, app.Deps{
		Store: db.OpenTestStore(t),
		Cache: storage.NewFileStorage(cfg.StaticCacheDir),
		Now:   func() time.Time { return now },
	})
	deps := Deps{
		Engine:          a.Engine,
		Schedule:        a.Schedule,
		Store:           a.Store,
		Hub:             a.Hub,
		RefreshInterval: 30,
		Version:         "test",
		Now:             a.Now,
	}
	r := gin.New()
	api.MountGroup(r, api.GroupConfig{Prefix: "/tv"}, DisplayModule(deps))
	api.MountGroup(r, api.GroupConfig{}, HealthModule(deps))
	return r, a
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func pushToday(t *testing.T, a *app.App) {
	t.Helper()
	_, err := a.Schedule.Push(context.Background(), []schedule.EntryInput{{
		Date: model.MustParseDate("2025-06-02"), Board: model.BoardMain,
		Title: "Fran", Content: "<h1>Fran</h1>",
	}}, "coach")
	require.NoError(t, err)
}

func TestBoardServesScheduledCard(t *testing.T) {
	r, a := newDisplay(t)
	pushToday(t, a)

	w := get(r, "/tv/mainboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Fran</h1>")
	assert.Contains(t, w.Body.String(), `content="30"`)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "1", w.Header().Get(HeaderLayer))
	assert.Equal(t, `"`+model.HashContent("<h1>Fran</h1>")+`"`, w.Header().Get("ETag"))

	again := get(r, "/tv/mainboard", map[string]string{"If-None-Match": w.Header().Get("ETag")})
	assert.Equal(t, http.StatusNotModified, again.Code)
	assert.Empty(t, again.Body.String())
}

func TestBoardOverrideWins(t *testing.T) {
	r, a := newDisplay(t)
	pushToday(t, a)
	content := "<h1>Closed for storm</h1>"
	_, err := a.Overrides.Apply(context.Background(), override.ApplyRequest{
		Board: model.BoardMain, Content: &content, Reason: "weather",
	}, "owner")
	require.NoError(t, err)

	w := get(r, "/tv/mainboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Closed for storm")
	assert.Equal(t, "1", w.Header().Get(HeaderLayer))
	assert.Equal(t, "override", w.Header().Get(HeaderSource))
}

func TestBoardWithoutCardShowsSplash(t *testing.T) {
	r, _ := newDisplay(t)

	w := get(r, "/tv/modboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get(HeaderLayer))
	assert.Contains(t, w.Body.String(), "ARIZE")
}

func TestUnknownBoard(t *testing.T) {
	r, _ := newDisplay(t)

	w := get(r, "/tv/lobby", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "5", w.Header().Get(HeaderLayer))
	assert.Empty(t, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), "ARIZE")
}

func TestDisplayStatus(t *testing.T) {
	r, a := newDisplay(t)
	pushToday(t, a)

	w := get(r, "/tv/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["mainboard_scheduled"])
	assert.Equal(t, false, body["modboard_scheduled"])
}

func TestHealth(t *testing.T) {
	r, a := newDisplay(t)

	w := get(r, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "test", body["version"])

	require.NoError(t, a.Store.Close())
	w = get(r, "/health", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body["database"])
}

func TestEventsPushesRefresh(t *testing.T) {
	r, a := newDisplay(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tv/mainboard/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return a.Hub.Subscribers(model.BoardMain) == 1 },
		2*time.Second, 10*time.Millisecond)

	pushToday(t, a)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg notify.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "refresh", msg.Type)
	assert.Equal(t, model.BoardMain, msg.Board)
	assert.Equal(t, notify.ReasonSchedule, msg.Reason)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return a.Hub.Subscribers(model.BoardMain) == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestEventsUnknownBoard(t *testing.T) {
	r, _ := newDisplay(t)

	w := get(r, "/tv/lobby/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
