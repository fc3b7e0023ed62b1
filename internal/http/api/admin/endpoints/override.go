package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/override"
)

type OverrideController struct {
	deps Deps
}

func newOverrideController(deps Deps) *OverrideController {
	return &OverrideController{deps: deps}
}

// OverrideModule mounts emergency override endpoints.
func OverrideModule(deps Deps) api.Module {
	ctl := newOverrideController(deps)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/override", ctl.apply)
		c.DELETE("/override/:board", ctl.clear)
	})
}

// POST /api/schedule/override
func (o *OverrideController) apply(ctx *gin.Context, actor string) (any, *api.APIError) {
	var request packets.OverrideRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	req := override.ApplyRequest{
		Board:   model.Board(request.Board),
		Content: request.Content,
		Reason:  request.Reason,
	}
	if request.SourceDate != nil && *request.SourceDate != "" {
		d, apiErr := parseDate(*request.SourceDate, "source_date")
		if apiErr != nil {
			return nil, apiErr
		}
		req.SourceDate = &d
	}

	created, err := o.deps.Overrides.Apply(ctx.Request.Context(), req, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.OverrideResponse{Status: "ok", Override: created}, nil
}

// DELETE /api/schedule/override/:board
func (o *OverrideController) clear(ctx *gin.Context, actor string) (any, *api.APIError) {
	board := model.Board(ctx.Param("board"))
	cleared, err := o.deps.Overrides.Clear(ctx.Request.Context(), board, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	if !cleared {
		return nil, api.FromError(apperr.NotFound("no active override for %s", board))
	}
	return packets.ClearOverrideResponse{Status: "ok", Board: board}, nil
}
