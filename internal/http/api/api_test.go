package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

func TestFromError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind apperr.Kind
	}{
		{apperr.ValidationAt(2, "bad title"), http.StatusBadRequest, apperr.KindValidation},
		{apperr.NotFound("nothing"), http.StatusNotFound, apperr.KindNotFound},
		{apperr.Immutable("past"), http.StatusConflict, apperr.KindImmutable},
		{apperr.Conflict("raced"), http.StatusConflict, apperr.KindConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		got := FromError(tt.err)
		assert.Equal(t, tt.code, got.Code, tt.err.Error())
		assert.Equal(t, tt.kind, got.Kind)
	}

	internal := FromError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal error", internal.Message)

	indexed := FromError(apperr.ValidationAt(2, "bad title"))
	require.NotNil(t, indexed.Index)
	assert.Equal(t, 2, *indexed.Index)
}

func TestMountGroupWithAuth(t *testing.T) {
	r := gin.New()
	MountGroup(r, GroupConfig{
		Prefix:        "/api/things",
		Auth:          true,
		Authenticator: middleware.NewAuthenticator("key", "", ""),
	}, ModuleFunc(func(c *Controller) {
		c.GET("", func(ctx *gin.Context, actor string) (any, *APIError) {
			return gin.H{"actor": actor}, nil
		})
		c.POST("/fail", func(ctx *gin.Context, actor string) (any, *APIError) {
			return nil, FromError(apperr.ValidationAt(0, "nope"))
		})
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/things", nil)
	req.Header.Set(middleware.HeaderAPIKey, "key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"actor":"api-key"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/things/fail", nil)
	req.Header.Set(middleware.HeaderAPIKey, "key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["kind"])
	assert.EqualValues(t, 0, body["index"])
}
