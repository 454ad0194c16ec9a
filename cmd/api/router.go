package api

import (
	"net/http"

	"ema-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	requireAuth := delivery.AuthMiddleware(h.authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Live updates for the signed-in account
		api.GET("/events", requireAuth, func(c *gin.Context) {
			h.sseManager.ServeHTTP(c, delivery.CurrentAccount(c).ID)
		})

		auth := api.Group("/auth")
		{
			auth.POST("/google", h.authHandler.GoogleSignIn)
			auth.POST("/imap", h.authHandler.IMAPSignIn)
			auth.GET("/me", requireAuth, h.authHandler.Me)
		}

		emails := api.Group("/emails")
		emails.Use(requireAuth)
		{
			emails.GET("", h.emailHandler.GetEmails)
			emails.GET("/:id/summary", h.emailHandler.GetEmailSummary)
			emails.POST("/summaries", h.emailHandler.QueueSummaries)
		}

		api.GET("/contacts", requireAuth, h.emailHandler.GetContacts)

		calendar := api.Group("/calendar")
		calendar.Use(requireAuth)
		{
			calendar.GET("/events", h.eventHandler.GetEvents)
			calendar.POST("/events/:id/add", h.eventHandler.AddToCalendar)
			calendar.DELETE("/events/:id/remote", h.eventHandler.RemoveFromCalendar)
			calendar.GET("/events/:id/verify", h.eventHandler.VerifyEvent)
			calendar.PATCH("/events/:id", h.eventHandler.MarkAdded)
			calendar.DELETE("/events/:id", h.eventHandler.DeleteEvent)
			calendar.POST("/sync", h.eventHandler.Sync)
		}

		// Single entry point the extension sends its actions to
		actions := api.Group("/actions")
		actions.Use(requireAuth)
		{
			actions.POST("", h.actionHandler.Handle)
			actions.GET("/active", h.actionHandler.Active)
		}

		// Settings routes (public) - Runtime configuration
		settings := api.Group("/settings")
		{
			settings.GET("/ollama", h.settings.GetOllamaSettings)
			settings.PUT("/ollama", h.settings.UpdateOllamaSettings)
			settings.POST("/ollama/test", h.settings.TestOllamaConnection)
		}
	}
}
