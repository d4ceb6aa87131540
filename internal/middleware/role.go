package middleware

import (
	"net/http"
	"slices"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RequireRole allows the request through when the authenticated role is one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(UserIDKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "User not authenticated"))
			return
		}

		userRole := c.GetString(UserRoleKey)
		if userRole == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden, "User role not found in token"))
			return
		}

		if !slices.Contains(roles, userRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden, "Insufficient permissions", map[string]interface{}{
				"required_roles": roles,
				"user_role":      userRole,
			}))
			return
		}

		c.Next()
	}
}
