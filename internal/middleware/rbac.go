package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/response"
)

// RequireRoles allows the request through only for the listed roles. Without
// attached claims the request passes, so it composes with RequireAuth(false, ...).
func RequireRoles(enforce bool, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			if enforce {
				response.Error(c, appErrors.ErrUnauthorized)
				return
			}
			c.Next()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
