package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/response"
	"krishimitra/api/internal/service"
)

const (
	// ContextUser holds the authenticated models.User for logging.
	ContextUser = "current_user"

	contextIdentity = "identity"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Identity, error)
}

// Auth resolves the bearer token before the handler runs. Missing and bad
// tokens are both 401 and differ only in message.
func Auth(auth Authenticator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Fail(c, http.StatusUnauthorized, response.MsgTokenRequired)
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			response.Error(c, log, err)
			return
		}

		c.Set(ContextUser, identity.User)
		c.Set(contextIdentity, identity)

		c.Next()
	}
}

func CurrentIdentity(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(contextIdentity)
	if !ok {
		return service.Identity{}, false
	}
	identity, ok := v.(service.Identity)
	return identity, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
