package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/REZ0AN/TaskPilot/internal/api/http/handlers"
	"github.com/REZ0AN/TaskPilot/internal/auth"
	"github.com/REZ0AN/TaskPilot/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	APIVersion     string
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	version := cfg.APIVersion
	if version == "" {
		version = "v1"
	}
	api := app.Group("/api/" + version)
	adminOnly := auth.RequireRole(domain.UserRoleAdmin)

	users := api.Group("/user")
	users.Post("/register", cfg.Users.Register)
	users.Post("/login", cfg.Users.Login)
	users.Get("/profile", cfg.AuthMiddleware.Handle, cfg.Users.Profile)
	users.Patch("/:id", cfg.AuthMiddleware.Handle, adminOnly, cfg.Users.UpdateUser)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", adminOnly, cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", adminOnly, cfg.Tickets.DeleteTicket)
}
