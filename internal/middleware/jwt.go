package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raci-tracker/backend/internal/auth"
	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/pkg/response"
)

// ContextPrincipal is the key for the authenticated principal in gin context.
const ContextPrincipal = "principal"

// JWT validates the bearer access token and stores the principal in the gin and request contexts.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		p, err := jwtService.ValidateAccess(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, p)
		c.Request = c.Request.WithContext(authz.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// Principal returns the principal set by JWT.
func Principal(c *gin.Context) authz.Principal {
	return c.MustGet(ContextPrincipal).(authz.Principal)
}
