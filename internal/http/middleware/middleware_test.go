package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(a *Authenticator) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/whoami", a.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, GetActor(c))
	})
	return r
}

func do(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthDisabledLetsEveryoneThrough(t *testing.T) {
	r := newRouter(NewAuthenticator("", "", ""))

	w := do(r, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ActorAnonymous, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = do(r, map[string]string{HeaderActor: "coach"})
	assert.Equal(t, "coach", w.Body.String())
}

func TestAPIKey(t *testing.T) {
	r := newRouter(NewAuthenticator("s3cret", "", ""))

	assert.Equal(t, http.StatusUnauthorized, do(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{HeaderAPIKey: "wrong"}).Code)

	w := do(r, map[string]string{HeaderAPIKey: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ActorAPIKey, w.Body.String())

	w = do(r, map[string]string{HeaderAPIKey: "s3cret", HeaderActor: "coach"})
	assert.Equal(t, "coach", w.Body.String())
}

func TestAPIKeyHash(t *testing.T) {
	hash, err := HashAPIKey("hashed-key")
	require.NoError(t, err)
	r := newRouter(NewAuthenticator("", hash, ""))

	assert.Equal(t, http.StatusOK, do(r, map[string]string{HeaderAPIKey: "hashed-key"}).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{HeaderAPIKey: "other"}).Code)
}

func TestBearerToken(t *testing.T) {
	r := newRouter(NewAuthenticator("", "", "jwt-secret"))

	token, err := GenerateJWT("head-coach", "jwt-secret", time.Hour)
	require.NoError(t, err)
	w := do(r, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "head-coach", w.Body.String())

	forged, err := GenerateJWT("intruder", "other-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{"Authorization": "Bearer " + forged}).Code)

	expired, err := GenerateJWT("head-coach", "jwt-secret", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{"Authorization": "Bearer " + expired}).Code)
}

func TestGenerateJWTRequiresInputs(t *testing.T) {
	_, err := GenerateJWT("", "secret", time.Hour)
	assert.Error(t, err)
	_, err = GenerateJWT("actor", "", time.Hour)
	assert.Error(t, err)
}
