package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-management-api/internal/middleware"
	"github.com/noah-isme/course-management-api/internal/models"
)

// Handlers groups every endpoint registered by RegisterRoutes.
type Handlers struct {
	Auth        *AuthHandler
	Courses     *CourseHandler
	Students    *StudentHandler
	Enrollments *EnrollmentHandler
	Activity    *ActivityHandler
	Dashboard   *DashboardHandler
	Metrics     *MetricsHandler
}

// RouteOptions controls how mutating routes are guarded.
type RouteOptions struct {
	Prefix       string
	AuthRequired bool
	Tokens       middleware.TokenValidator
}

// RegisterRoutes mounts the API under opts.Prefix. Metrics are served at the root.
func RegisterRoutes(r gin.IRouter, h Handlers, opts RouteOptions) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/api"
	}
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.GET("/health", h.Metrics.Health)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", middleware.OptionalJWT(opts.Tokens), h.Auth.Logout)

	guard := []gin.HandlerFunc{
		middleware.RequireAuth(opts.AuthRequired, opts.Tokens),
		middleware.RequireRoles(opts.AuthRequired, models.RoleAdmin),
	}
	mutating := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		chain := make([]gin.HandlerFunc, 0, len(guard)+1)
		chain = append(chain, guard...)
		return append(chain, handler)
	}

	courses := api.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.POST("", mutating(h.Courses.Create)...)
	courses.GET("/stats/overview", h.Courses.Stats)
	courses.POST("/reconcile", mutating(h.Courses.ReconcileAll)...)
	courses.GET("/:id", h.Courses.Get)
	courses.PUT("/:id", mutating(h.Courses.Update)...)
	courses.DELETE("/:id", mutating(h.Courses.Delete)...)
	courses.POST("/:id/reconcile", mutating(h.Courses.Reconcile)...)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", mutating(h.Students.Create)...)
	students.GET("/stats/overview", h.Students.Stats)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", mutating(h.Students.Update)...)
	students.DELETE("/:id", mutating(h.Students.Delete)...)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", mutating(h.Enrollments.Create)...)
	enrollments.GET("/stats/overview", h.Enrollments.Stats)
	enrollments.GET("/export", h.Enrollments.Export)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.PUT("/:id", mutating(h.Enrollments.Update)...)
	enrollments.PUT("/:id/grade", mutating(h.Enrollments.UpdateGrade)...)
	enrollments.DELETE("/:id", mutating(h.Enrollments.Delete)...)

	api.GET("/activity", h.Activity.Recent)
	api.GET("/dashboard", h.Dashboard.Overview)
}
