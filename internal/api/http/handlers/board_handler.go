package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-tickets/internal/api/dto"
	"github.com/spec-kit/facility-tickets/internal/service"
)

// BoardHandler serves the flow console snapshot.
type BoardHandler struct {
	tickets *service.TicketService
}

// NewBoardHandler constructs handler.
func NewBoardHandler(tickets *service.TicketService) *BoardHandler {
	return &BoardHandler{tickets: tickets}
}

// Board GET /properties/:id/board.
func (h *BoardHandler) Board(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	propertyID := c.Params("id")
	tickets, err := h.tickets.Board(c.UserContext(), actor, propertyID)
	if err != nil {
		return err
	}
	now := time.Now()
	resp := dto.BoardResponse{PropertyID: propertyID, Tickets: make([]dto.TicketResponse, 0, len(tickets))}
	for i := range tickets {
		resp.Tickets = append(resp.Tickets, TicketResponse(&tickets[i], now))
	}
	return c.JSON(fiber.Map{"data": resp})
}
