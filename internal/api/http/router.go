package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-tickets/internal/api/http/handlers"
	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Assignments    *handlers.AssignmentHandler
	Board          *handlers.BoardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	tickets := protected.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Post("/batch-reassign",
		auth.RequireRole(domain.RoleMasterAdmin, domain.RoleOrgSuperAdmin, domain.RolePropertyAdmin),
		cfg.Assignments.BatchReassign)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.PatchTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/claim", cfg.Assignments.Claim)
	tickets.Get("/:id/claimable", cfg.Assignments.Claimable)
	tickets.Post("/:id/sla/pause", cfg.Tickets.PauseSLA)
	tickets.Post("/:id/sla/resume", cfg.Tickets.ResumeSLA)
	tickets.Post("/:id/work/pause", cfg.Tickets.PauseWork)
	tickets.Post("/:id/work/resume", cfg.Tickets.ResumeWork)
	tickets.Post("/:id/photos/:slot", cfg.Tickets.AttachPhoto)
	tickets.Post("/:id/force-close", cfg.Tickets.ForceClose)
	tickets.Get("/:id/activity", cfg.Tickets.Activity)

	protected.Get("/properties/:id/board", cfg.Board.Board)
}
