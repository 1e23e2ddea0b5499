package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/pkg/auth"
	"github.com/jwalitptl/doctorconnect-api/pkg/httputil"
)

const ContextPrincipal = "principal"

type AuthMiddleware struct {
	jwtService auth.JWTService
}

func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate verifies the bearer token and stores the caller's principal
// in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		principal, err := m.jwtService.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextPrincipal, *principal)
		c.Next()
	}
}

// RequireRole rejects callers whose token carries a different role.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "not authenticated")
			return
		}
		if principal.Role != role {
			httputil.RespondWithStatus(c, http.StatusForbidden, "requires role "+string(role))
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}
