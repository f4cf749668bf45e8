package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-tickets/internal/api/dto"
	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/service"
	"github.com/spec-kit/facility-tickets/internal/sla"
	"github.com/spec-kit/facility-tickets/internal/workflow"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket command surface.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		PropertyID:   req.PropertyID,
		Category:     req.Category,
		SubCategory:  req.SubCategory,
		SkillGroupID: req.SkillGroupID,
		Priority:     req.Priority,
		Title:        req.Title,
		Description:  req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": TicketResponse(ticket, time.Now())})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": TicketResponse(ticket, time.Now())})
}

// PatchTicket PATCH /tickets/:id. Status, assignee and content changes are
// separate commands, so a request may carry only one of them.
func (h *TicketsHandler) PatchTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	kinds := 0
	if req.Status != nil {
		kinds++
	}
	if req.AssignedTo != nil || req.Unassign {
		kinds++
	}
	if req.Title != nil || req.Description != nil {
		kinds++
	}
	if kinds != 1 {
		return apperrors.NewValidationError("send exactly one of status, assigned_to/unassign, or title/description", nil)
	}

	ctx := c.UserContext()
	id := c.Params("id")
	var ticket *domain.Ticket
	switch {
	case req.Status != nil:
		ticket, err = h.tickets.ExecuteAt(ctx, actor, id, workflow.ChangeStatus{To: *req.Status, Comment: req.Comment}, req.ExpectedVersion)
	case req.Unassign:
		ticket, err = h.assignments.Reassign(ctx, actor, id, nil, req.ExpectedVersion)
	case req.AssignedTo != nil:
		ticket, err = h.assignments.Reassign(ctx, actor, id, req.AssignedTo, req.ExpectedVersion)
	default:
		ticket, err = h.tickets.ExecuteAt(ctx, actor, id, workflow.EditContent{Title: req.Title, Description: req.Description}, req.ExpectedVersion)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": TicketResponse(ticket, time.Now())})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PauseSLA POST /tickets/:id/sla/pause.
func (h *TicketsHandler) PauseSLA(c *fiber.Ctx) error {
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.run(c, workflow.PauseSLA{Reason: req.Reason})
}

// ResumeSLA POST /tickets/:id/sla/resume.
func (h *TicketsHandler) ResumeSLA(c *fiber.Ctx) error {
	return h.run(c, workflow.ResumeSLA{})
}

// PauseWork POST /tickets/:id/work/pause.
func (h *TicketsHandler) PauseWork(c *fiber.Ctx) error {
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.run(c, workflow.PauseWork{Reason: req.Reason})
}

// ResumeWork POST /tickets/:id/work/resume.
func (h *TicketsHandler) ResumeWork(c *fiber.Ctx) error {
	return h.run(c, workflow.ResumeWork{})
}

// AttachPhoto POST /tickets/:id/photos/:slot.
func (h *TicketsHandler) AttachPhoto(c *fiber.Ctx) error {
	var req dto.PhotoRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.run(c, workflow.AttachPhoto{Slot: domain.PhotoSlot(c.Params("slot")), URL: req.URL})
}

// ForceClose POST /tickets/:id/force-close.
func (h *TicketsHandler) ForceClose(c *fiber.Ctx) error {
	var req dto.CommentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	return h.run(c, workflow.ForceClose{Comment: req.Comment})
}

// Activity GET /tickets/:id/activity.
func (h *TicketsHandler) Activity(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 100)
	records, err := h.tickets.History(c.UserContext(), actor, c.Params("id"), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(records))
	for _, r := range records {
		items = append(items, dto.ActivityResponse{
			ID:        r.ID,
			ActorID:   r.ActorID,
			Action:    r.Action,
			OldValue:  r.OldValue,
			NewValue:  r.NewValue,
			CreatedAt: r.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *TicketsHandler) run(c *fiber.Ctx, cmd workflow.Command) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Execute(c.UserContext(), actor, c.Params("id"), cmd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": TicketResponse(ticket, time.Now())})
}

func requireActor(c *fiber.Ctx) (*domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// TicketResponse renders a ticket with its SLA clock evaluated at now.
func TicketResponse(t *domain.Ticket, now time.Time) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            t.ID,
		Key:           t.Key(),
		Number:        t.Number,
		PropertyID:    t.PropertyID,
		Category:      t.Category,
		SubCategory:   t.SubCategory,
		SkillGroupID:  t.SkillGroupID,
		Priority:      t.Priority,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		RaisedBy:      t.RaisedBy,
		AssignedTo:    t.AssignedTo,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		AssignedAt:    t.AssignedAt,
		WorkStartedAt: t.WorkStartedAt,
		ResolvedAt:    t.ResolvedAt,
		ClosedAt:      t.ClosedAt,
		SLA: dto.SLAResponse{
			Deadline:         t.SLADeadline,
			AdjustedDeadline: sla.AdjustedDeadline(t, now),
			RemainingSeconds: int64(sla.Remaining(t, now) / time.Second),
			Breached:         t.SLABreached,
			Paused:           t.SLAPaused,
			PausedAt:         t.SLAPausedAt,
			PausedSeconds:    int64(sla.PausedDuration(t, now) / time.Second),
		},
		WorkPaused:      t.WorkPaused,
		WorkPauseReason: t.WorkPauseReason,
		PhotoBeforeURL:  t.PhotoBeforeURL,
		PhotoAfterURL:   t.PhotoAfterURL,
		Version:         t.Version,
	}
}
