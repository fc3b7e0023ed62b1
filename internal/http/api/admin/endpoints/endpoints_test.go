package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/app"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/config"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/storage"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	router *gin.Engine
	app    *app.App
}

// newFixture serves the management API as of Monday 2025-06-02 10:00 in
// Chicago, authenticated with X-API-Key "secret".
func newFixture(t *testing.T) *fixture {
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
		Schedule:  a.Schedule,
		Overrides: a.Overrides,
		Rotation:  a.Rotation,
		Audit:     a.Audit,
		Store:     a.Store,
		Now:       a.Now,
	}

	r := gin.New()
	api.MountGroup(r, api.GroupConfig{
		Prefix:        "/api/schedule",
		Auth:          true,
		Authenticator: middleware.NewAuthenticator("secret", "", ""),
	}, ScheduleModule(deps), OverrideModule(deps), StatusModule(deps))
	return &fixture{router: r, app: a}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAPIKey, "secret")
	req.Header.Set(middleware.HeaderActor, "coach-amy")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func entry(date, board, title string) map[string]any {
	return map[string]any{
		"schedule_date": date,
		"board_type":    board,
		"workout_title": title,
		"html_content":  "<h1>" + title + "</h1>",
	}
}

func (f *fixture) push(t *testing.T, entries ...map[string]any) {
	t.Helper()
	w, body := f.do(t, http.MethodPost, "/api/schedule", map[string]any{"entries": entries})
	require.Equal(t, http.StatusOK, w.Code, body)
}

func TestRequiresCredentials(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPushAndRead(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/schedule", map[string]any{"entries": []any{
		entry("2025-06-02", "mainboard", "Fran"),
		entry("2025-06-02", "modboard", "Fran (mod)"),
		entry("2025-06-03", "mainboard", "Grace"),
	}})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["scheduled"])

	w, body = f.do(t, http.MethodGet, "/api/schedule/2025-06-02", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := body["entries"].(map[string]any)
	assert.Len(t, entries, 2)
	main := entries["mainboard"].(map[string]any)
	assert.Equal(t, "Fran", main["workout_title"])
	assert.Equal(t, "coach-amy", main["pushed_by"])
	assert.Equal(t, "rx", main["version"], "version defaults per board")

	w, body = f.do(t, http.MethodGet, "/api/schedule?start=2025-06-03&end=2025-06-09", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
}

func TestPushValidation(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/schedule", map[string]any{"entries": []any{
		entry("2025-06-03", "mainboard", "Grace"),
		entry("2025-06-01", "mainboard", "Yesterday"),
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", body["kind"])
	assert.EqualValues(t, 1, body["index"])

	w, body = f.do(t, http.MethodPost, "/api/schedule", map[string]any{"entries": []any{
		entry("June 3", "mainboard", "Grace"),
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 0, body["index"])

	w, _ = f.do(t, http.MethodPost, "/api/schedule", map[string]any{"entries": []any{
		entry("2025-06-03", "lobby", "Grace"),
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing from the rejected pushes was stored.
	w, body = f.do(t, http.MethodGet, "/api/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["total"])
}

func TestEditAndDelete(t *testing.T) {
	f := newFixture(t)
	f.push(t, entry("2025-06-03", "mainboard", "Grace"))

	w, body := f.do(t, http.MethodPut, "/api/schedule/2025-06-03/mainboard", map[string]any{
		"workout_title": "Grace (heavy)",
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "Grace (heavy)", body["entry"].(map[string]any)["workout_title"])

	w, body = f.do(t, http.MethodPut, "/api/schedule/2025-06-04/mainboard", map[string]any{
		"workout_title": "Nope",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["kind"])

	w, body = f.do(t, http.MethodDelete, "/api/schedule/2025-06-01", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "immutable", body["kind"])

	w, body = f.do(t, http.MethodDelete, "/api/schedule/2025-06-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["deleted"])

	w, _ = f.do(t, http.MethodGet, "/api/schedule/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClone(t *testing.T) {
	f := newFixture(t)
	f.push(t,
		entry("2025-06-03", "mainboard", "Grace"),
		entry("2025-06-03", "modboard", "Grace (mod)"),
		entry("2025-06-05", "mainboard", "Helen"),
	)

	w, body := f.do(t, http.MethodPost, "/api/schedule/clone", map[string]any{
		"source_date": "2025-06-03",
		"target_date": "2025-06-10",
		"board_type":  "modboard",
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.EqualValues(t, 1, body["cloned"])

	w, body = f.do(t, http.MethodPost, "/api/schedule/clone-week", map[string]any{
		"source_week_start": "2025-06-02",
		"target_week_start": "2025-06-16",
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.EqualValues(t, 3, body["cloned"])
	assert.Len(t, body["days"], 2)

	w, _ = f.do(t, http.MethodPost, "/api/schedule/clone", map[string]any{
		"source_date": "2025-06-03",
		"target_date": "2025-05-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/schedule/clone", map[string]any{
		"source_date": "2025-06-04",
		"target_date": "2025-06-11",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOverrideLifecycle(t *testing.T) {
	f := newFixture(t)
	f.push(t, entry("2025-06-03", "mainboard", "Grace"))

	w, body := f.do(t, http.MethodPost, "/api/schedule/override", map[string]any{
		"board_type": "mainboard",
		"source_date": "2025-06-03",
		"reason":      "preview tomorrow",
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	ovr := body["override"].(map[string]any)
	assert.Equal(t, "coach-amy", ovr["applied_by"])
	assert.Equal(t, "2025-06-03", ovr["source_date"])

	w, body = f.do(t, http.MethodGet, "/api/schedule/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	boards := body["boards"].(map[string]any)
	assert.Contains(t, boards["mainboard"], "override")
	assert.Equal(t, "idle", body["rotation_state"])

	w, _ = f.do(t, http.MethodPost, "/api/schedule/override", map[string]any{"board_type": "mainboard"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "content or source_date is required")

	w, _ = f.do(t, http.MethodDelete, "/api/schedule/override/mainboard", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodDelete, "/api/schedule/override/mainboard", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["kind"])
}

func TestAuditQuery(t *testing.T) {
	f := newFixture(t)
	f.push(t, entry("2025-06-03", "mainboard", "Grace"), entry("2025-06-03", "modboard", "Grace (mod)"))
	f.do(t, http.MethodDelete, "/api/schedule/2025-06-03", nil)

	w, body := f.do(t, http.MethodGet, "/api/schedule/audit?action=delete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total"])

	w, body = f.do(t, http.MethodGet, "/api/schedule/audit?board=modboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := body["records"].([]any)
	require.Len(t, records, 2)
	assert.Equal(t, "delete", records[0].(map[string]any)["action"], "newest first")

	w, _ = f.do(t, http.MethodGet, "/api/schedule/audit?action=explode", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRotateNow(t *testing.T) {
	f := newFixture(t)
	f.push(t, entry("2025-06-02", "mainboard", "Fran"))

	w, body := f.do(t, http.MethodPost, "/api/schedule/rotate", nil)
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "ok", body["status"])
	require.Contains(t, body, "rotation")

	w, body = f.do(t, http.MethodGet, "/api/schedule/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body, "last_rotation")
	boards := body["boards"].(map[string]any)
	assert.Contains(t, boards["mainboard"], "resolved")
}
