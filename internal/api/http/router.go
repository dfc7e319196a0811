package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sapdesk/sapdesk/internal/api/http/handlers"
	"github.com/sapdesk/sapdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	Admin          *handlers.AdminHandler
	Analytics      *handlers.AnalyticsHandler
	Emails         *handlers.EmailsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/azure/login", cfg.Auth.AzureLogin)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/auth/me", cfg.Auth.Me)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Patch("/comments/:commentId", cfg.Tickets.UpdateComment)
	tickets.Delete("/comments/:commentId", cfg.Tickets.DeleteComment)
	tickets.Delete("/attachments/:attachmentId", cfg.Tickets.DeleteAttachment)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.Delete)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Get("/:id/logs", cfg.Tickets.Logs)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)

	users := protected.Group("/users")
	users.Get("", cfg.Users.List)
	users.Patch("/me", cfg.Users.UpdateProfile)
	users.Get("/:id", cfg.Users.Get)

	analytics := protected.Group("/analytics")
	analytics.Get("/dashboard", cfg.Analytics.Dashboard)
	analytics.Get("/me", cfg.Analytics.Me)
	analytics.Get("/categories", cfg.Analytics.Categories)
	analytics.Get("/users/:id", auth.RequireAdmin(), cfg.Analytics.ForUser)
	analytics.Get("", auth.RequireAdmin(), cfg.Analytics.Full)

	emails := protected.Group("/emails", auth.RequireAdmin())
	emails.Post("/fetch", cfg.Emails.Fetch)
	emails.Get("/stats", cfg.Emails.Stats)
	emails.Get("/recent", cfg.Emails.Recent)
	emails.Get("/unprocessed", cfg.Emails.Unprocessed)
	emails.Get("/by-category/:category", cfg.Emails.ByCategory)
	emails.Post("/:id/reprocess", cfg.Emails.Reprocess)

	admin := protected.Group("/admin", auth.RequireAdmin())
	admin.Get("/users/admins", cfg.Admin.ListAdmins)
	admin.Put("/users/:id/admin", cfg.Admin.SetAdmin)
	admin.Put("/users/:id/active", cfg.Admin.SetActive)
	admin.Get("/audit-logs", cfg.Admin.AuditLogs)
}
