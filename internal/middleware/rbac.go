package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/itsmahammad/UniversityERP/internal/models"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/response"
)

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, r := range allowed {
		allowedRoles[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowedRoles[claims.Role]; !ok {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "your role cannot access this resource"))
			return
		}
		c.Next()
	}
}

// RequireAdmin allows the top and admin tiers.
func RequireAdmin() gin.HandlerFunc {
	return RBAC(models.AdminRoles...)
}

// RequireSuperAdmin allows the top tier only.
func RequireSuperAdmin() gin.HandlerFunc {
	return RBAC(models.RoleSuperAdmin)
}
