package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/middleware"
)

type APIError struct {
	Code    int
	Message string
	Kind    apperr.Kind
	Index   *int
}

func BadRequest(message string) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: message, Kind: apperr.KindValidation}
}

// FromError maps a service error onto a response. Unclassified errors are
// logged and reported without detail.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	kind := apperr.KindOf(err)
	out := &APIError{Kind: kind, Message: err.Error()}
	switch kind {
	case apperr.KindValidation:
		out.Code = http.StatusBadRequest
		if i, ok := apperr.IndexOf(err); ok {
			out.Index = &i
		}
	case apperr.KindNotFound:
		out.Code = http.StatusNotFound
	case apperr.KindImmutable, apperr.KindConflict:
		out.Code = http.StatusConflict
	default:
		log.Error().Err(err).Msg("request failed")
		out.Code = http.StatusInternalServerError
		out.Message = "internal error"
		out.Kind = ""
	}
	return out
}

func (e *APIError) body() gin.H {
	body := gin.H{"error": e.Message}
	if e.Kind != "" {
		body["kind"] = e.Kind
	}
	if e.Index != nil {
		body["index"] = *e.Index
	}
	return body
}

type HandlerFuncWithActor func(ctx *gin.Context, actor string) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func ResolveEndpointWithActor(h HandlerFuncWithActor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx, middleware.GetActor(ctx))
		respond(ctx, result, apiErr)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		respond(ctx, result, apiErr)
	}
}

func respond(ctx *gin.Context, result any, apiErr *APIError) {
	if apiErr != nil {
		ctx.JSON(apiErr.Code, apiErr.body())
		return
	}
	if ctx.Writer.Written() {
		return
	}
	ctx.JSON(http.StatusOK, result)
}
