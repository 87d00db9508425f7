package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/chat"
)

// contextKeyIdentity is the gin context key for the authenticated identity.
const contextKeyIdentity = "identity"

// AuthMiddleware validates bearer tokens through the identity gate and
// stores the resolved identity on the request context.
func AuthMiddleware(gate chat.IdentityGate, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			logger.Debug().Msg("missing authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		ident, err := gate.Authenticate(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set(contextKeyIdentity, ident)
		c.Next()
	}
}

// bearerToken extracts the token from a "Bearer <token>" header value.
func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// identityFromContext returns the identity stored by AuthMiddleware.
func identityFromContext(c *gin.Context) (chat.Identity, bool) {
	value, exists := c.Get(contextKeyIdentity)
	if !exists {
		return chat.Identity{}, false
	}
	ident, ok := value.(chat.Identity)
	return ident, ok
}

// LoggerMiddleware logs HTTP requests after they complete.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
