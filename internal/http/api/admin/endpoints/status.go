package endpoints

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

type StatusController struct {
	deps Deps
}

func newStatusController(deps Deps) *StatusController {
	return &StatusController{deps: deps}
}

// StatusModule mounts live status, the audit trail and manual rotation.
func StatusModule(deps Deps) api.Module {
	ctl := newStatusController(deps)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/status", ctl.status)
		c.GET("/audit", ctl.audit)
		c.POST("/rotate", ctl.rotate)
	})
}

// GET /api/schedule/status
func (s *StatusController) status(ctx *gin.Context, _ string) (any, *api.APIError) {
	reqCtx := ctx.Request.Context()
	now := s.deps.now()

	boards := make(map[model.Board]packets.BoardStatus)
	for _, b := range s.deps.Schedule.Catalog().Boards() {
		boards[b] = packets.BoardStatus{}
	}

	resolved, err := s.deps.Store.ListResolved(reqCtx)
	if err != nil {
		return nil, api.FromError(err)
	}
	for i := range resolved {
		st := boards[resolved[i].Board]
		st.Resolved = &resolved[i]
		boards[resolved[i].Board] = st
	}

	overrides, err := s.deps.Overrides.ListActive(reqCtx)
	if err != nil {
		return nil, api.FromError(err)
	}
	for i := range overrides {
		st := boards[overrides[i].Board]
		st.Override = &overrides[i]
		boards[overrides[i].Board] = st
	}

	out := packets.StatusResponse{
		Boards:         boards,
		NextRotationAt: s.deps.Rotation.NextRotation(now),
		RotationState:  s.deps.Rotation.State(),
		ServerTime:     now,
	}
	last, err := s.deps.Store.LatestRotation(reqCtx)
	switch {
	case err == nil:
		out.LastRotation = last
	case !errors.Is(err, db.ErrNotFound):
		return nil, api.FromError(err)
	}
	return out, nil
}

// GET /api/schedule/audit?action&board&page&page_size
func (s *StatusController) audit(ctx *gin.Context, _ string) (any, *api.APIError) {
	var filter audit.Filter
	if raw := ctx.Query("action"); raw != "" {
		action := model.Action(raw)
		if !action.Valid() {
			return nil, api.BadRequest("unknown action " + raw)
		}
		filter.Action = &action
	}
	if raw := ctx.Query("board"); raw != "" {
		filter.Board = audit.BoardPtr(model.Board(raw))
	}
	var apiErr *api.APIError
	if filter.Page, apiErr = queryInt(ctx, "page"); apiErr != nil {
		return nil, apiErr
	}
	if filter.PageSize, apiErr = queryInt(ctx, "page_size"); apiErr != nil {
		return nil, apiErr
	}

	page, err := s.deps.Audit.Query(ctx.Request.Context(), filter)
	if err != nil {
		return nil, api.FromError(err)
	}
	return page, nil
}

// POST /api/schedule/rotate
func (s *StatusController) rotate(ctx *gin.Context, _ string) (any, *api.APIError) {
	res, err := s.deps.Rotation.RunNow(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	status := "ok"
	if res.Skipped != "" {
		status = "skipped"
	}
	return packets.RotateResponse{Status: status, Skipped: res.Skipped, Rotation: res.Rotation}, nil
}
