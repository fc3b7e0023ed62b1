package endpoints

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/tv/packets"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/notify"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/resolve"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/schedule"
)

const (
	HeaderLayer  = "X-Resolution-Layer"
	HeaderSource = "X-Resolution-Source"

	DefaultRefreshInterval = 60
)

//go:embed shell.html
var shellHTML string

var shell = template.Must(template.New("shell").Parse(shellHTML))

// Deps are the services behind the display endpoints.
type Deps struct {
	Engine          *resolve.Engine
	Schedule        *schedule.Service
	Store           db.Store
	Hub             *notify.Hub
	RefreshInterval int
	Version         string
	Now             func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

type DisplayController struct {
	deps Deps
}

func newDisplayController(deps Deps) *DisplayController {
	if deps.RefreshInterval <= 0 {
		deps.RefreshInterval = DefaultRefreshInterval
	}
	return &DisplayController{deps: deps}
}

// DisplayModule mounts the unauthenticated pages the TVs load.
func DisplayModule(deps Deps) api.Module {
	ctl := newDisplayController(deps)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/status", ctl.status)
		c.Raw(http.MethodGet, "/:board", ctl.board)
		c.Raw(http.MethodGet, "/:board/events", ctl.events)
	})
}

// HealthModule mounts /health.
func HealthModule(deps Deps) api.Module {
	ctl := newDisplayController(deps)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/health", ctl.health)
	})
}

type shellData struct {
	Board         model.Board
	Layer         int
	Title         string
	Refresh       int
	RefreshMillis int
	Content       template.HTML
}

// GET /tv/:board
// Always answers with a page; an unknown board gets the splash with 404.
func (d *DisplayController) board(ctx *gin.Context) {
	board := model.Board(ctx.Param("board"))

	status := http.StatusOK
	var res resolve.Resolution
	if d.deps.Schedule.Catalog().HasBoard(board) {
		res = d.deps.Engine.Resolve(ctx.Request.Context(), board, d.deps.now())
	} else {
		status = http.StatusNotFound
		res = resolve.Resolution{Board: board, Layer: model.LayerSplash, Artifact: resolve.Splash(), Source: "splash"}
	}

	etag := `"` + res.Artifact.ContentHash + `"`
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header(HeaderLayer, strconv.Itoa(int(res.Layer)))
	ctx.Header(HeaderSource, res.Source)

	if status == http.StatusOK {
		ctx.Header("ETag", etag)
		if matchesETag(ctx.GetHeader("If-None-Match"), etag) {
			ctx.Status(http.StatusNotModified)
			return
		}
	}

	var buf bytes.Buffer
	err := shell.Execute(&buf, shellData{
		Board:         board,
		Layer:         int(res.Layer),
		Title:         res.Artifact.Title,
		Refresh:       d.deps.RefreshInterval,
		RefreshMillis: d.deps.RefreshInterval * 1000,
		Content:       template.HTML(res.Artifact.Content),
	})
	if err != nil {
		log.Error().Err(err).Str("board", string(board)).Msg("render tv shell failed")
		ctx.Data(status, "text/html; charset=utf-8", []byte(res.Artifact.Content))
		return
	}
	ctx.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// GET /tv/status
func (d *DisplayController) status(ctx *gin.Context, _ string) (any, *api.APIError) {
	now := d.deps.now()
	today := d.deps.Schedule.Today()

	out := gin.H{"status": "ok", "server_time": now}
	boards := gin.H{}
	for _, b := range d.deps.Schedule.Catalog().Boards() {
		entry, err := d.deps.Schedule.Get(ctx.Request.Context(), b, today)
		if err != nil {
			out["status"] = "degraded"
		}
		scheduled := entry != nil
		boards[string(b)] = scheduled
		out[string(b)+"_scheduled"] = scheduled
	}
	out["boards"] = boards
	return out, nil
}

// GET /health
func (d *DisplayController) health(ctx *gin.Context, _ string) (any, *api.APIError) {
	out := packets.HealthResponse{
		Status:    "ok",
		Service:   "workoutboard",
		Version:   d.deps.Version,
		Database:  "ok",
		Timestamp: d.deps.now().UTC(),
	}
	if d.deps.Store != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.deps.Store.Ping(pingCtx); err != nil {
			out.Status = "degraded"
			out.Database = "unavailable"
		}
	}
	return out, nil
}
