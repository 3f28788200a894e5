package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/interfaces/middleware"
)

// Browser cache lifetimes for the cacheable reads.
const (
	statsMaxAge    = 30 * time.Second
	activityMaxAge = 15 * time.Second
)

// Dependencies is everything the routes need. Ping may be nil.
type Dependencies struct {
	Sessions      middleware.SessionValidator
	Auth          AuthServiceInterface
	Tasks         TaskServiceInterface
	Deals         DealServiceInterface
	Clients       ClientServiceInterface
	Activity      ActivityServiceInterface
	Notifications NotificationServiceInterface
	Webhooks      WebhookServiceInterface
	Automations   AutomationServiceInterface
	Stats         StatsServiceInterface

	Limiter      ports.RateLimiter
	RateLimitRPM int
	Ping         func(ctx context.Context) error
	Logger       *slog.Logger
}

// DependenciesFromServices maps the service manager onto the route dependencies.
func DependenciesFromServices(sm *services.ServiceManager) Dependencies {
	return Dependencies{
		Sessions:      sm.Auth,
		Auth:          sm.Auth,
		Tasks:         sm.Tasks,
		Deals:         sm.Deals,
		Clients:       sm.Clients,
		Activity:      sm.Activity,
		Notifications: sm.Notifications,
		Webhooks:      sm.Webhooks,
		Automations:   sm.Automation,
		Stats:         sm.Stats,
	}
}

// SetupRoutes registers every API route on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	authH := NewAuthHandler(deps.Auth)
	taskH := NewTaskHandler(deps.Tasks)
	dealH := NewDealHandler(deps.Deals)
	clientH := NewClientHandler(deps.Clients)
	activityH := NewActivityHandler(deps.Activity)
	notificationH := NewNotificationHandler(deps.Notifications)
	webhookH := NewWebhookHandler(deps.Webhooks)
	automationH := NewAutomationHandler(deps.Automations)
	dashboardH := NewDashboardHandler(deps.Stats)

	router.Use(middleware.NoStore())

	router.GET("/health", func(c *gin.Context) {
		if deps.Ping != nil {
			if err := deps.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var rateLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		rateLimit = middleware.RateLimit(deps.Limiter, deps.RateLimitRPM, log)
	}
	requireAuth := middleware.RequireAuth(deps.Sessions)
	requireSystemAdmin := middleware.RequireSystemAdmin()

	api := router.Group("/api")

	// Auth
	api.POST("/auth/login", rateLimit, authH.Login)

	authed := api.Group("", requireAuth, rateLimit)
	{
		authed.POST("/auth/logout", authH.Logout)
		authed.GET("/auth/me", authH.Me)
		authed.POST("/auth/register", requireSystemAdmin, authH.Register)

		// Tasks
		authed.POST("/tasks", taskH.CreateTask)
		authed.PATCH("/tasks/:id", taskH.UpdateTask)
		authed.DELETE("/tasks/:id", taskH.DeleteTask)
		authed.POST("/tasks/:id/assign", taskH.AssignTask)
		authed.POST("/tasks/:id/complete", taskH.CompleteTask)

		// Deals
		authed.POST("/deals", dealH.CreateDeal)
		authed.POST("/deals/:id/stage", dealH.ChangeStage)
		authed.POST("/deals/:id/win", dealH.WinDeal)
		authed.POST("/deals/:id/lose", dealH.LoseDeal)

		// Clients
		authed.POST("/clients", clientH.CreateClient)
		authed.PATCH("/clients/:id", clientH.UpdateClient)
		authed.DELETE("/clients/:id", clientH.DeleteClient)

		// Activity
		cacheActivity := middleware.Cacheable(activityMaxAge)
		authed.GET("/activity", cacheActivity, activityH.GetRecent)
		authed.GET("/activity/actor/:userId", cacheActivity, activityH.GetActorFeed)
		authed.GET("/activity/:subjectType/:subjectId", cacheActivity, activityH.GetSubjectFeed)

		// Notifications
		authed.GET("/notifications", notificationH.GetNotifications)
		authed.GET("/notifications/unread-count", notificationH.GetUnreadCount)
		authed.POST("/notifications/read-all", notificationH.MarkAllAsRead)
		authed.POST("/notifications/:id/read", notificationH.MarkAsRead)

		// Webhooks
		authed.GET("/webhooks", webhookH.ListWebhooks)
		authed.POST("/webhooks", webhookH.CreateWebhook)
		authed.GET("/webhooks/:id", webhookH.GetWebhook)
		authed.PATCH("/webhooks/:id", webhookH.UpdateWebhook)
		authed.DELETE("/webhooks/:id", webhookH.DeleteWebhook)
		authed.GET("/webhooks/:id/logs", webhookH.GetLogs)
		authed.POST("/webhooks/:id/test", webhookH.SendTest)

		// Dashboard
		authed.GET("/dashboard/stats", middleware.Cacheable(statsMaxAge), dashboardH.GetStats)
	}

	admin := authed.Group("/automations", requireSystemAdmin)
	{
		admin.GET("", automationH.ListAutomations)
		admin.POST("", automationH.CreateAutomation)
		admin.GET("/:id", automationH.GetAutomation)
		admin.PUT("/:id", automationH.UpdateAutomation)
		admin.DELETE("/:id", automationH.DeleteAutomation)
	}
}
