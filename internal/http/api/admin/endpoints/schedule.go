package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/schedule"
)

type ScheduleController struct {
	deps Deps
}

func newScheduleController(deps Deps) *ScheduleController {
	return &ScheduleController{deps: deps}
}

// ScheduleModule mounts the calendar endpoints.
func ScheduleModule(deps Deps) api.Module {
	ctl := newScheduleController(deps)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("", ctl.push)
		c.GET("", ctl.list)
		c.GET("/:date", ctl.day)
		c.PUT("/:date/:board", ctl.edit)
		c.DELETE("/:date", ctl.deleteDay)

		c.POST("/clone", ctl.clone)
		c.POST("/clone-week", ctl.cloneWeek)
	})
}

// POST /api/schedule
func (s *ScheduleController) push(ctx *gin.Context, actor string) (any, *api.APIError) {
	var request packets.PushRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	inputs := make([]schedule.EntryInput, 0, len(request.Entries))
	for i, e := range request.Entries {
		date, err := model.ParseDate(e.ScheduleDate)
		if err != nil {
			apiErr := api.BadRequest("invalid schedule_date: expected YYYY-MM-DD")
			apiErr.Index = &i
			return nil, apiErr
		}
		inputs = append(inputs, schedule.EntryInput{
			Date:      date,
			Board:     model.Board(e.Board),
			Version:   model.Version(e.Version),
			Title:     e.Title,
			DateLabel: e.DateLabel,
			Content:   e.Content,
		})
	}

	saved, err := s.deps.Schedule.Push(ctx.Request.Context(), inputs, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.PushResponse{Status: "ok", Scheduled: len(saved), Entries: saved}, nil
}

// GET /api/schedule?start&end&page&page_size
func (s *ScheduleController) list(ctx *gin.Context, _ string) (any, *api.APIError) {
	start, apiErr := optionalDate(ctx, "start")
	if apiErr != nil {
		return nil, apiErr
	}
	end, apiErr := optionalDate(ctx, "end")
	if apiErr != nil {
		return nil, apiErr
	}
	page, apiErr := queryInt(ctx, "page")
	if apiErr != nil {
		return nil, apiErr
	}
	size, apiErr := queryInt(ctx, "page_size")
	if apiErr != nil {
		return nil, apiErr
	}

	out, err := s.deps.Schedule.Range(ctx.Request.Context(), schedule.RangeQuery{
		Start: start, End: end, Page: page, PageSize: size,
	})
	if err != nil {
		return nil, api.FromError(err)
	}
	return out, nil
}

// GET /api/schedule/:date
func (s *ScheduleController) day(ctx *gin.Context, _ string) (any, *api.APIError) {
	date, apiErr := parseDate(ctx.Param("date"), "date")
	if apiErr != nil {
		return nil, apiErr
	}
	out, err := s.deps.Schedule.ForDate(ctx.Request.Context(), date)
	if err != nil {
		return nil, api.FromError(err)
	}
	return out, nil
}

// PUT /api/schedule/:date/:board
func (s *ScheduleController) edit(ctx *gin.Context, actor string) (any, *api.APIError) {
	date, apiErr := parseDate(ctx.Param("date"), "date")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.EditRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	patch := model.EntryPatch{Title: request.Title, Content: request.Content, DateLabel: request.DateLabel}
	if request.Version != nil {
		v := model.Version(*request.Version)
		patch.Version = &v
	}

	entry, err := s.deps.Schedule.Edit(ctx.Request.Context(), date, model.Board(ctx.Param("board")), patch, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.EditResponse{Status: "ok", Entry: entry}, nil
}

// DELETE /api/schedule/:date
func (s *ScheduleController) deleteDay(ctx *gin.Context, actor string) (any, *api.APIError) {
	date, apiErr := parseDate(ctx.Param("date"), "date")
	if apiErr != nil {
		return nil, apiErr
	}
	n, err := s.deps.Schedule.DeleteDay(ctx.Request.Context(), date, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.DeleteResponse{Status: "ok", Deleted: n, Date: date}, nil
}

// POST /api/schedule/clone
func (s *ScheduleController) clone(ctx *gin.Context, actor string) (any, *api.APIError) {
	var request packets.CloneRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	source, apiErr := parseDate(request.SourceDate, "source_date")
	if apiErr != nil {
		return nil, apiErr
	}
	target, apiErr := parseDate(request.TargetDate, "target_date")
	if apiErr != nil {
		return nil, apiErr
	}
	var board *model.Board
	if request.Board != nil && *request.Board != "" {
		b := model.Board(*request.Board)
		board = &b
	}

	entries, err := s.deps.Schedule.Clone(ctx.Request.Context(), source, target, board, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.CloneResponse{Status: "ok", Cloned: len(entries), Entries: entries}, nil
}

// POST /api/schedule/clone-week
func (s *ScheduleController) cloneWeek(ctx *gin.Context, actor string) (any, *api.APIError) {
	var request packets.CloneWeekRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	source, apiErr := parseDate(request.SourceWeekStart, "source_week_start")
	if apiErr != nil {
		return nil, apiErr
	}
	target, apiErr := parseDate(request.TargetWeekStart, "target_week_start")
	if apiErr != nil {
		return nil, apiErr
	}

	res, err := s.deps.Schedule.CloneWeek(ctx.Request.Context(), source, target, actor)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.CloneResponse{Status: "ok", Cloned: res.Count, Days: res.Days, Entries: res.Entries}, nil
}
