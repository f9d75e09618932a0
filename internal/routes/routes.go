package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"taskflow/internal/authz"
	"taskflow/internal/handlers"
	"taskflow/internal/metrics"
	"taskflow/internal/middleware"
)

const streamPath = "/api/notifications/stream"

type Handlers struct {
	Auth          *handlers.AuthHandler
	Employees     *handlers.EmployeeHandler
	Projects      *handlers.ProjectHandler
	Reports       *handlers.ReportHandler
	Tasks         *handlers.TaskHandler
	Bugs          *handlers.BugHandler
	Suggestions   *handlers.SuggestionHandler
	Notifications *handlers.NotificationHandler
	// Integrations is nil when the Telegram bot is disabled.
	Integrations *handlers.IntegrationsHandler
}

// Options covers the routes that depend on deployment configuration.
type Options struct {
	JWTSecret []byte
	// FilesDir is served under /files when uploads live on local disk.
	FilesDir string
}

func SetupRoutes(r *gin.Engine, h Handlers, opts Options) *gin.Engine {
	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if opts.FilesDir != "" {
		r.Static("/files", opts.FilesDir)
	}

	api := r.Group("/api")
	api.POST("/pm/register", h.Auth.RegisterPM)
	api.POST("/pm/login", h.Auth.LoginPM)
	api.POST("/employees/login", h.Auth.LoginEmployee)
	for _, prefix := range []string{"/auth", "/pm"} {
		api.POST(prefix+"/forgot-password", h.Auth.ForgotPassword)
		api.POST(prefix+"/verify-otp", h.Auth.VerifyOTP)
		api.POST(prefix+"/reset-password", h.Auth.ResetPassword)
	}
	if h.Integrations != nil {
		r.POST("/integrations/telegram/webhook", h.Integrations.Webhook)
	}

	// ---- protected
	authed := api.Group("", middleware.AuthMiddleware(opts.JWTSecret, streamPath))
	pm := middleware.RequireRoles(authz.RolePM)
	employee := middleware.RequireRoles(authz.RoleDeveloper, authz.RoleTester)
	developer := middleware.RequireRoles(authz.RoleDeveloper)
	tester := middleware.RequireRoles(authz.RoleTester)

	authed.GET("/pm/me", pm, h.Auth.Me)

	// EMPLOYEES
	emps := authed.Group("/employees")
	{
		emps.GET("/profile", employee, h.Employees.Profile)
		emps.PATCH("/profile", employee, h.Employees.UpdateProfile)
		emps.POST("", pm, h.Employees.Create)
		emps.GET("", pm, h.Employees.List)
		emps.GET("/developers", pm, h.Employees.ListDevelopers)
		emps.GET("/testers", pm, h.Employees.ListTesters)
		emps.PUT("/:id/status", pm, h.Employees.UpdateStatus)
		emps.DELETE("/:id", pm, h.Employees.Delete)
	}

	// PROJECTS
	projects := authed.Group("/projects", pm)
	{
		projects.POST("", h.Projects.Create)
		projects.GET("", h.Projects.List)
		projects.GET("/:id", h.Projects.Get)
		projects.PATCH("/:id", h.Projects.UpdateStatus)
		projects.GET("/:id/report", h.Reports.ProjectReport)
	}

	// TASKS
	tasks := authed.Group("/tasks")
	{
		tasks.POST("", pm, h.Tasks.Create)
		tasks.GET("/assigned", employee, h.Tasks.ListAssigned)
		tasks.GET("/project/:projectId", h.Tasks.ListByProject)
		tasks.GET("/:id", h.Tasks.GetByID)
		tasks.GET("/:id/submission", h.Tasks.Submission("id"))
		tasks.PUT("/:id/assign", pm, h.Tasks.Assign)
		tasks.POST("/:id/submit", developer, h.Tasks.Submit)
		tasks.PUT("/:id/modify", developer, h.Tasks.Modify)
		tasks.POST("/:id/send-back", tester, h.Tasks.SendBack)
		tasks.POST("/:id/approve", tester, h.Tasks.Approve)
	}
	authed.GET("/submissions/task/:taskId", h.Tasks.Submission("taskId"))

	// BUGS
	bugs := authed.Group("/bugs")
	{
		bugs.POST("", tester, h.Bugs.Report)
		bugs.GET("", pm, h.Bugs.ListAll)
		bugs.GET("/assigned", developer, h.Bugs.ListAssigned)
		bugs.GET("/my", tester, h.Bugs.ListReported)
		bugs.GET("/:id", h.Bugs.Get)
		bugs.PATCH("/:id/status", employee, h.Bugs.UpdateStatus)
	}

	// SUGGESTIONS
	sugs := authed.Group("/suggestions")
	{
		sugs.POST("", employee, h.Suggestions.Create)
		sugs.GET("", pm, h.Suggestions.ListAll)
		sugs.GET("/pm", pm, h.Suggestions.ListMine)
		sugs.GET("/pm/:pmId", pm, h.Suggestions.ListByPM)
		sugs.PUT("/:id", pm, h.Suggestions.Resolve)
	}

	// NOTIFICATIONS
	notifs := authed.Group("/notifications")
	{
		notifs.GET("", h.Notifications.List)
		notifs.GET("/stream", h.Notifications.Stream)
		notifs.PATCH("/read-all", h.Notifications.MarkAllRead)
		notifs.PATCH("/:id/read", h.Notifications.MarkRead)
		notifs.POST("/:id/action", h.Notifications.TakeAction)
	}

	if h.Integrations != nil {
		authed.POST("/integrations/telegram/request-link", employee, h.Integrations.RequestLink)
	}

	return r
}
