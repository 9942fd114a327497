package rest

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/interfaces/middleware"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
)

// Handlers groups every REST handler mounted by NewRouter
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Contacts      *ContactHandler
	Pipelines     *PipelineHandler
	Opportunities *OpportunityHandler
	Tasks         *TaskHandler
	Conversations *ConversationHandler
	Meta          *MetaHandler
	RingCentral   *RingCentralHandler
	Invoices      *InvoiceHandler
	Workshops     *WorkshopHandler
	Intake        *IntakeHandler
}

// HandlersFor builds the handlers on top of the service manager
func HandlersFor(sm *services.ServiceManager, cookie CookieOptions) Handlers {
	return Handlers{
		Auth:          NewAuthHandler(sm.Auth, cookie),
		Users:         NewUserHandler(sm.Users),
		Contacts:      NewContactHandler(sm.Contacts),
		Pipelines:     NewPipelineHandler(sm.Pipelines),
		Opportunities: NewOpportunityHandler(sm.Opportunities),
		Tasks:         NewTaskHandler(sm.Tasks),
		Conversations: NewConversationHandler(sm.Conversations),
		Meta:          NewMetaHandler(sm.Meta),
		RingCentral:   NewRingCentralHandler(sm.RingCentral),
		Invoices:      NewInvoiceHandler(sm.Invoices),
		Workshops:     NewWorkshopHandler(sm.Workshops),
		Intake:        NewIntakeHandler(sm.Intake),
	}
}

// RouterOptions carries the collaborators shared by the middleware chain
type RouterOptions struct {
	Sessions middleware.SessionValidator
	Limiter  ports.RateLimiter
	WebDir   string
}

// NewRouter mounts the API, webhooks and guarded page routes
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(),
		middleware.LoadSession(opts.Sessions),
		middleware.Guard(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/logout", h.Auth.Logout)
			authGroup.GET("/me", h.Auth.Me)
			authGroup.POST("/change-password", h.Auth.ChangePassword)
			authGroup.GET("/verify", h.Auth.VerifyLink)
			authGroup.POST("/verify", h.Auth.Verify)
			authGroup.POST("/resend-verification", h.Auth.ResendVerification)
			authGroup.GET("/meta/connect", middleware.RequireAdmin(), h.Meta.Connect)
			authGroup.GET("/meta/callback", h.Meta.Callback)
		}

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.GET("/users", h.Users.ListUsers)
			admin.POST("/users", h.Users.CreateUser)
			admin.PATCH("/users/:id", h.Users.UpdateUser)
			admin.POST("/users/:id/suspend", h.Users.Suspend)
			admin.POST("/users/:id/reinstate", h.Users.Reinstate)
			admin.POST("/users/:id/reset-password", h.Users.ResetPassword)

			admin.POST("/pipelines", h.Pipelines.CreatePipeline)
			admin.POST("/pipelines/:id/stages", h.Pipelines.CreateStage)
			admin.PATCH("/stages/:id", h.Pipelines.UpdateStage)
			admin.DELETE("/stages/:id", h.Pipelines.DeleteStage)
			admin.POST("/stages/:id/templates", h.Pipelines.CreateTemplate)
			admin.PATCH("/templates/:id", h.Pipelines.UpdateTemplate)
			admin.DELETE("/templates/:id", h.Pipelines.DeleteTemplate)
		}

		contacts := api.Group("/contacts")
		{
			contacts.GET("", h.Contacts.List)
			contacts.POST("", h.Contacts.Create)
			contacts.GET("/:id", h.Contacts.Get)
			contacts.PATCH("/:id", h.Contacts.Update)
			contacts.DELETE("/:id", h.Contacts.Delete)
		}

		pipelines := api.Group("/pipelines")
		{
			pipelines.GET("", h.Pipelines.List)
			pipelines.GET("/:id", h.Pipelines.Get)
			pipelines.GET("/:id/board", h.Pipelines.Board)
		}

		opps := api.Group("/opportunities")
		{
			opps.GET("", h.Opportunities.List)
			opps.POST("", h.Opportunities.Create)
			opps.GET("/:id", h.Opportunities.Get)
			opps.PATCH("/:id", h.Opportunities.Update)
			opps.DELETE("/:id", h.Opportunities.Delete)
			opps.POST("/:id/move", h.Opportunities.MoveStage)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("", h.Tasks.List)
			tasks.POST("", h.Tasks.Create)
			tasks.GET("/:id", h.Tasks.Get)
			tasks.POST("/:id/complete", h.Tasks.Complete)
			tasks.POST("/:id/reopen", h.Tasks.Reopen)
			tasks.DELETE("/:id", h.Tasks.Delete)
		}

		conversations := api.Group("/conversations")
		{
			conversations.GET("", h.Conversations.List)
			conversations.GET("/:id", h.Conversations.Get)
			conversations.POST("/:id/read", h.Conversations.MarkRead)
			conversations.POST("/:id/messages", h.Conversations.SendMessage)
		}

		pages := api.Group("/integrations/meta/pages")
		{
			pages.GET("", h.Meta.ListPages)
			pages.DELETE("/:id", middleware.RequireAdmin(), h.Meta.DisconnectPage)
		}

		rc := api.Group("/ringcentral")
		{
			rc.GET("/status", h.RingCentral.Status)
			rc.POST("/sms", h.RingCentral.SendSMS)
			rc.POST("/call", h.RingCentral.Call)
			rc.GET("/call-log", h.RingCentral.CallLogs)
			rc.POST("/call-log/sync", h.RingCentral.SyncCallLogs)
		}

		confido := api.Group("/confido")
		{
			confido.GET("/invoices", h.Invoices.List)
			confido.POST("/invoices", h.Invoices.Create)
			confido.GET("/invoices/:id", h.Invoices.Get)
			confido.POST("/invoices/:id/send", h.Invoices.Send)
			confido.POST("/invoices/:id/void", h.Invoices.Void)
		}

		workshops := api.Group("/workshops")
		{
			workshops.GET("", h.Workshops.List)
			workshops.POST("", h.Workshops.Create)
			workshops.GET("/:id", h.Workshops.Get)
			workshops.PATCH("/:id", h.Workshops.Update)
			workshops.DELETE("/:id", h.Workshops.Delete)
			workshops.GET("/:id/registrations", h.Workshops.Registrations)
			workshops.POST("/:id/registrations", h.Workshops.Register)
			workshops.PATCH("/:id/registrations/:regId", h.Workshops.MarkAttendance)
		}

		api.POST("/intake", middleware.RateLimit(opts.Limiter, "intake"), h.Intake.Submit)

		// vendor webhooks authenticate by signature or verify token and burst from a few IPs
		hooks := api.Group("/webhooks")
		{
			hooks.GET("/meta", h.Meta.VerifyWebhook)
			hooks.POST("/meta", h.Meta.ReceiveWebhook)
			hooks.POST("/ringcentral", h.RingCentral.Webhook)
			hooks.POST("/confido", h.Invoices.Webhook)
		}
	}

	mountPages(router, opts.WebDir)
	return router
}

// mountPages serves the static front end. Every page route falls back to index.html.
func mountPages(router *gin.Engine, webDir string) {
	if webDir == "" {
		webDir = "./web"
	}
	router.Static("/assets", filepath.Join(webDir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(webDir, "favicon.ico"))

	index := filepath.Join(webDir, "index.html")
	page := func(name string) gin.HandlerFunc {
		file := filepath.Join(webDir, name+".html")
		if _, err := os.Stat(file); err != nil {
			file = index
		}
		return func(c *gin.Context) { c.File(file) }
	}

	router.GET(domain.PathHome, page("index"))
	router.GET(domain.PathLogin, page("login"))
	router.GET(domain.PathChangePassword, page("change-password"))
	router.GET(domain.PathVerifyPending, page("verify-pending"))
	router.GET("/admin/*path", page("admin"))

	router.NoRoute(func(c *gin.Context) {
		if domain.IsAPIPath(c.Request.URL.Path) || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{
				constants.ResponseError:   "Not Found",
				constants.ResponseMessage: "route not found",
				"code":                    "NOT_FOUND",
				"data":                    nil,
			})
			return
		}
		c.File(index)
	})
}
