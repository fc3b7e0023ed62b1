package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	actorKey = "actor"

	HeaderAPIKey = "X-API-Key"
	HeaderActor  = "X-Actor"

	ActorAPIKey    = "api-key"
	ActorAnonymous = "anonymous"
)

// uses bcrypt to hash a plaintext API key for API_KEY_HASH.
func HashAPIKey(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// compares a bcrypt hash with the plaintext.
func CheckAPIKeyHash(hash, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// Authenticator decides whether a management request may proceed and who
// made it.
type Authenticator struct {
	apiKey     string
	apiKeyHash string
	jwtSecret  string
}

func NewAuthenticator(apiKey, apiKeyHash, jwtSecret string) *Authenticator {
	return &Authenticator{apiKey: apiKey, apiKeyHash: apiKeyHash, jwtSecret: jwtSecret}
}

// Enabled reports whether any credential is configured. With none, every
// request is let through.
func (a *Authenticator) Enabled() bool {
	return a != nil && (a.apiKey != "" || a.apiKeyHash != "" || a.jwtSecret != "")
}

func (a *Authenticator) checkAPIKey(key string) bool {
	if key == "" {
		return false
	}
	if a.apiKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) == 1 {
		return true
	}
	return a.apiKeyHash != "" && CheckAPIKeyHash(a.apiKeyHash, key)
}

// Authenticate returns the acting identity for the request, or false.
func (a *Authenticator) Authenticate(c *gin.Context) (string, bool) {
	if !a.Enabled() {
		return headerActor(c, ActorAnonymous), true
	}

	if a.checkAPIKey(c.GetHeader(HeaderAPIKey)) {
		return headerActor(c, ActorAPIKey), true
	}

	if a.jwtSecret != "" {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			if sub, err := parseToken(parts[1], a.jwtSecret); err == nil {
				return sub, true
			}
		}
	}
	return "", false
}

// Middleware rejects unauthorized requests and stores the actor for handlers.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	if !a.Enabled() {
		log.Warn().Msg("no API_KEY, API_KEY_HASH or JWT_SECRET configured; management API is unauthenticated")
	}
	return func(c *gin.Context) {
		actor, ok := a.Authenticate(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor returns the identity stored by Middleware, falling back to the
// X-Actor header on unauthenticated routes.
func GetActor(c *gin.Context) string {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(string); ok && actor != "" {
			return actor
		}
	}
	return headerActor(c, ActorAnonymous)
}

func headerActor(c *gin.Context, fallback string) string {
	if v := strings.TrimSpace(c.GetHeader(HeaderActor)); v != "" {
		return v
	}
	return fallback
}
