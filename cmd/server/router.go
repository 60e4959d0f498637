package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/auth"
	"github.com/raci-tracker/backend/internal/companies"
	"github.com/raci-tracker/backend/internal/dashboard"
	"github.com/raci-tracker/backend/internal/departments"
	"github.com/raci-tracker/backend/internal/events"
	"github.com/raci-tracker/backend/internal/meetings"
	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/internal/raci"
	"github.com/raci-tracker/backend/internal/users"
	"github.com/raci-tracker/backend/internal/websiteadmins"
	"github.com/raci-tracker/backend/pkg/response"
	"github.com/raci-tracker/backend/pkg/storage"
)

// handlers groups the HTTP handlers the router mounts.
type handlers struct {
	auth          *auth.Handler
	companies     *companies.Handler
	websiteAdmins *websiteadmins.Handler
	departments   *departments.Handler
	users         *users.Handler
	events        *events.Handler
	raci          *raci.Handler
	meetings      *meetings.Handler
	dashboard     *dashboard.Handler
	ws            gin.HandlerFunc
}

// routerOptions carries the configuration the router needs.
type routerOptions struct {
	corsOrigins   []string
	production    bool
	authRateLimit int
	uploadDir     string // served under /uploads when non-empty
}

func newRouter(logger *zap.Logger, jwtService *auth.JWTService, h handlers, opts routerOptions) *gin.Engine {
	const (
		webAdmin     = models.RoleWebsiteAdmin
		companyAdmin = models.RoleCompanyAdmin
		hod          = models.RoleHOD
		user         = models.RoleUser
	)
	role := middleware.RequireRole

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(opts.corsOrigins))
	router.Use(middleware.Secure(opts.production, logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	if opts.uploadDir != "" {
		router.Static(storage.PublicPrefix, opts.uploadDir)
	}
	router.NoRoute(func(c *gin.Context) { response.NotFound(c, "route not found") })

	limited := middleware.RateLimit(opts.authRateLimit, time.Minute)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", limited, h.auth.Login)
		authGroup.POST("/refresh-token", limited, h.auth.Refresh)
		authGroup.POST("/forgot-password", limited, h.auth.ForgotPassword)
		authGroup.POST("/verify-otp", limited, h.auth.VerifyOTP)
		authGroup.POST("/reset-password", limited, h.auth.ResetPassword)
	}
	router.POST("/api/website-admins/login", limited, h.auth.AdminLogin)

	// WebSocket (token in query; browsers cannot set the Authorization header)
	router.GET("/api/ws", h.ws)

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", h.auth.Me)
		api.POST("/auth/change-password", h.auth.ChangePassword)
		api.POST("/auth/logout", h.auth.Logout)

		// Companies
		api.GET("/companies", role(webAdmin), h.companies.List)
		api.POST("/companies", role(webAdmin), h.companies.Create)
		api.GET("/companies/my-company", role(companyAdmin, hod), h.companies.Mine)
		api.GET("/companies/:id", h.companies.Get)
		api.PUT("/companies/:id", role(webAdmin, companyAdmin), h.companies.Update)
		api.PATCH("/companies/:id/settings", role(companyAdmin), h.companies.UpdateSettings)
		api.DELETE("/companies/:id", role(webAdmin), h.companies.Delete)

		// Website admins
		admins := api.Group("/website-admins", role(webAdmin))
		admins.GET("", h.websiteAdmins.List)
		admins.POST("", h.websiteAdmins.Create)
		admins.GET("/:id", h.websiteAdmins.Get)
		admins.PUT("/:id", h.websiteAdmins.Update)
		admins.DELETE("/:id", h.websiteAdmins.Delete)

		// Departments
		api.GET("/companies/:id/departments", role(companyAdmin, hod), h.departments.List)
		api.POST("/companies/:id/departments", role(companyAdmin), h.departments.Create)
		api.GET("/departments/:id", role(companyAdmin, hod), h.departments.Get)
		api.PUT("/departments/:id", role(companyAdmin), h.departments.Update)
		api.DELETE("/departments/:id", role(companyAdmin), h.departments.Delete)

		// Users
		api.GET("/users", role(webAdmin, companyAdmin, hod), h.users.List)
		api.POST("/users", role(webAdmin, companyAdmin), h.users.Create)
		api.GET("/users/:id", h.users.Get)
		api.PUT("/users/:id", role(webAdmin, companyAdmin), h.users.Update)
		api.DELETE("/users/:id", role(webAdmin, companyAdmin), h.users.Delete)

		// Events and trackers
		tenant := role(companyAdmin, hod, user)
		api.POST("/events", role(companyAdmin, hod), h.events.Create)
		api.GET("/events", tenant, h.events.List)
		api.GET("/events/:id", tenant, h.events.Get)
		api.GET("/events/:id/approval-status", tenant, h.raci.ApprovalStatus)
		api.GET("/trackers/mine", tenant, h.events.MyTrackers)
		api.PATCH("/trackers/:id", tenant, h.events.UpdateTracker)

		// RACI matrices and approvals
		api.GET("/raci-matrices/event/:eventId", tenant, h.raci.Matrix)
		api.PUT("/raci-matrices/event/:eventId", role(companyAdmin, hod), h.raci.ReplaceMatrix)
		api.GET("/raci-tracker/my-assignments", tenant, h.raci.MyAssignments)
		api.GET("/raci-tracker/company", role(companyAdmin, hod), h.raci.CompanyAssignments)
		api.GET("/raci/approvals/pending", tenant, h.raci.PendingApprovals)
		api.POST("/raci/approvals/:id/approve", tenant, h.raci.Approve)
		api.POST("/raci/approvals/:id/reject", tenant, h.raci.Reject)

		// Meetings
		api.GET("/meetings/event/:eventId", tenant, h.meetings.ListByEvent)
		api.POST("/meetings", role(companyAdmin, hod), h.meetings.Create)
		api.GET("/meetings/:id", tenant, h.meetings.Get)
		api.PUT("/meetings/:id", role(companyAdmin, hod), h.meetings.Update)
		api.DELETE("/meetings/:id", role(companyAdmin, hod), h.meetings.Delete)

		// Dashboards
		api.GET("/dashboard/website-admin", role(webAdmin), h.dashboard.WebsiteAdmin)
		api.GET("/dashboard/company-admin", role(companyAdmin), h.dashboard.CompanyAdmin)
		api.GET("/dashboard/hod", role(hod), h.dashboard.HOD)
		api.GET("/dashboard/user", role(user), h.dashboard.User)
	}
	return router
}
