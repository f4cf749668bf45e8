package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-tickets/internal/api/dto"
	"github.com/spec-kit/facility-tickets/internal/events"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// HTTPClient talks to the ticket API. It implements Committer and SnapshotSource.
type HTTPClient struct {
	baseURL    string
	token      string
	propertyID string
	timeout    time.Duration
}

// NewHTTPClient builds a client for one property.
func NewHTTPClient(baseURL, token, propertyID string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		propertyID: propertyID,
		timeout:    timeout,
	}
}

// Snapshot fetches GET /properties/:id/board.
func (c *HTTPClient) Snapshot(ctx context.Context) ([]Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	agent := fiber.Get(fmt.Sprintf("%s/properties/%s/board", c.baseURL, c.propertyID))
	c.prepare(agent)

	var envelope struct {
		Data dto.BoardResponse `json:"data"`
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if status != http.StatusOK {
		return nil, decodeError(status, body)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode board: %w", err)
	}
	cards := make([]Card, 0, len(envelope.Data.Tickets))
	for _, t := range envelope.Data.Tickets {
		cards = append(cards, Card{
			TicketID:   t.ID,
			Number:     t.Number,
			Key:        t.Key,
			Title:      t.Title,
			Priority:   t.Priority,
			Status:     t.Status,
			AssignedTo: t.AssignedTo,
			Version:    t.Version,
		})
	}
	return cards, nil
}

// Commit sends PATCH /tickets/:id with the new assignee and the version the
// move was made against.
func (c *HTTPClient) Commit(ctx context.Context, move Move) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := dto.PatchTicketRequest{AssignedTo: move.To, Unassign: move.To == nil}
	if move.ExpectedVersion > 0 {
		v := move.ExpectedVersion
		req.ExpectedVersion = &v
	}
	agent := fiber.Patch(fmt.Sprintf("%s/tickets/%s", c.baseURL, move.TicketID))
	c.prepare(agent)
	agent.JSON(req)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if status != http.StatusOK {
		return decodeError(status, body)
	}
	return nil
}

func (c *HTTPClient) prepare(agent *fiber.Agent) {
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Timeout(c.timeout)
}

// decodeError turns the API error envelope back into a DomainError.
func decodeError(status int, body []byte) error {
	var envelope struct {
		Error dto.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return apperrors.NewDomainError(apperrors.CodeInternal, fmt.Sprintf("unexpected status %d", status), status, nil)
	}
	return apperrors.NewDomainError(envelope.Error.Code, envelope.Error.Message, status, envelope.Error.Details)
}

// FromEvent converts a realtime event into a board notification.
func FromEvent(event events.Event) Notification {
	return Notification{
		TicketID:   event.TicketID,
		Number:     event.Ticket.Number,
		Key:        event.Ticket.Key,
		Status:     event.Ticket.Status,
		AssignedTo: event.Ticket.AssignedTo,
		Version:    event.Ticket.Version,
		Deleted:    event.Type == events.EventTicketDeleted,
	}
}
