package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-tickets/internal/api/dto"
	"github.com/spec-kit/facility-tickets/internal/service"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// AssignmentHandler exposes claim and reassignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// Claim POST /tickets/:id/claim.
func (h *AssignmentHandler) Claim(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.Claim(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": TicketResponse(ticket, time.Now())})
}

// Claimable GET /tickets/:id/claimable.
func (h *AssignmentHandler) Claimable(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	decision, err := h.assignments.CanSelfClaim(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClaimableResponse{Allowed: decision.Allowed, Reason: string(decision.Reason)}})
}

// BatchReassign POST /tickets/batch-reassign. Always 200; each item carries
// its own result or error.
func (h *AssignmentHandler) BatchReassign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.BatchReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	items := make([]service.ReassignItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.ReassignItem{
			TicketID:        item.TicketID,
			To:              item.AssignedTo,
			ExpectedVersion: item.ExpectedVersion,
		})
	}
	results, err := h.assignments.BatchReassign(c.UserContext(), actor, items)
	if err != nil {
		return err
	}
	now := time.Now()
	out := make([]dto.BatchReassignResult, 0, len(results))
	for _, r := range results {
		entry := dto.BatchReassignResult{TicketID: r.TicketID}
		if r.Err != nil {
			de := apperrors.ToDomainError(r.Err)
			entry.Error = &dto.ErrorBody{Code: de.Code, Message: de.Message, Details: de.Details}
		} else if r.Ticket != nil {
			resp := TicketResponse(r.Ticket, now)
			entry.Ticket = &resp
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"data": out})
}
