package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/itsmahammad/UniversityERP/internal/middleware"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth    *AuthHandler
	Account *AccountHandler
	Users   *UserHandler
	Faculty *FacultyHandler
	Metrics *MetricsHandler
}

// RegisterRoutes mounts ops endpoints at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, tokens middleware.TokenValidator, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	account := secured.Group("/account")
	account.GET("/me", h.Account.Me)
	account.POST("/change-password", h.Account.ChangePassword)

	users := secured.Group("/users", middleware.RequireAdmin())
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.POST("/import", h.Users.Import)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.PATCH("/:id/activate", h.Users.Activate)
	users.PATCH("/:id/deactivate", h.Users.Deactivate)
	users.PATCH("/:id/role", h.Users.ChangeRole)
	users.POST("/:id/reset-password", h.Users.ResetPassword)

	faculties := secured.Group("/faculties", middleware.RequireSuperAdmin(), middleware.ResponseMeta())
	faculties.GET("", h.Faculty.List)
	faculties.POST("", h.Faculty.Create)
	faculties.GET("/:id", h.Faculty.Get)
	faculties.PUT("/:id", h.Faculty.Update)
	faculties.DELETE("/:id", h.Faculty.Delete)
}
