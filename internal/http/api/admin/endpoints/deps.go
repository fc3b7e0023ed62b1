package endpoints

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/override"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/rotation"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/schedule"
)

// Deps are the services behind the management API.
type Deps struct {
	Schedule  *schedule.Service
	Overrides *override.Manager
	Rotation  *rotation.Scheduler
	Audit     *audit.Log
	Store     db.Store
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func parseDate(raw, field string) (model.Date, *api.APIError) {
	date, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, api.BadRequest("invalid " + field + ": expected YYYY-MM-DD")
	}
	return date, nil
}

func optionalDate(ctx *gin.Context, name string) (*model.Date, *api.APIError) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, apiErr := parseDate(raw, name)
	if apiErr != nil {
		return nil, apiErr
	}
	return &d, nil
}

func queryInt(ctx *gin.Context, name string) (int, *api.APIError) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &api.APIError{Code: http.StatusBadRequest, Message: "invalid " + name}
	}
	return n, nil
}
