// Package console keeps a live assignment board for dispatchers. The board is
// an authoritative snapshot from the server plus an overlay of moves that are
// still being saved.
package console

import (
	"sort"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// Card is one ticket on the board.
type Card struct {
	TicketID   string
	Number     int64
	Key        string
	Title      string
	Priority   domain.TicketPriority
	Status     domain.TicketStatus
	AssignedTo *string
	Version    int64
	// Saving is set on cards shown at a position that is not yet committed.
	Saving bool
}

// Lane groups cards by assignee. The waitlist lane has an empty ResolverID.
type Lane struct {
	ResolverID string
	Cards      []Card
}

// Move is a pending reassignment. A nil To sends the ticket to the waitlist.
type Move struct {
	TicketID        string
	To              *string
	ExpectedVersion int64
}

// Notification is a realtime change pushed by the server.
type Notification struct {
	TicketID   string
	Number     int64
	Key        string
	Status     domain.TicketStatus
	AssignedTo *string
	Version    int64
	Deleted    bool
}

// Board is not safe for concurrent use; Reconciler serializes access.
type Board struct {
	authoritative map[string]Card
	pending       map[string]Move
	// held keeps the newest notification suppressed while a write was
	// pending, so a rejected write can fall back to what the server accepted.
	held map[string]Notification
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{
		authoritative: map[string]Card{},
		pending:       map[string]Move{},
		held:          map[string]Notification{},
	}
}

// Replace swaps in a fresh snapshot. Pending overlays are kept.
func (b *Board) Replace(cards []Card) {
	b.authoritative = make(map[string]Card, len(cards))
	for _, c := range cards {
		c.Saving = false
		b.authoritative[c.TicketID] = c
	}
}

// Card returns the authoritative card.
func (b *Board) Card(ticketID string) (Card, bool) {
	c, ok := b.authoritative[ticketID]
	return c, ok
}

// Pending reports whether ticketID has an uncommitted move.
func (b *Board) Pending(ticketID string) bool {
	_, ok := b.pending[ticketID]
	return ok
}

func (b *Board) setPending(m Move) {
	b.pending[m.TicketID] = m
}

// clearPending drops the overlay and returns the newest notification
// suppressed in the meantime, if any.
func (b *Board) clearPending(ticketID string) (Notification, bool) {
	delete(b.pending, ticketID)
	n, ok := b.held[ticketID]
	delete(b.held, ticketID)
	return n, ok
}

// Apply folds a notification into the snapshot. It returns false when the
// notification was suppressed because of a pending write or was older than
// the card already held.
func (b *Board) Apply(n Notification) bool {
	if _, ok := b.pending[n.TicketID]; ok {
		if prev, seen := b.held[n.TicketID]; !seen || n.Version >= prev.Version {
			b.held[n.TicketID] = n
		}
		return false
	}
	current, exists := b.authoritative[n.TicketID]
	if exists && n.Version != 0 && n.Version < current.Version {
		return false
	}
	if n.Deleted || n.Status.Terminal() {
		delete(b.authoritative, n.TicketID)
		return true
	}
	current.TicketID = n.TicketID
	if n.Number != 0 {
		current.Number = n.Number
	}
	if n.Key != "" {
		current.Key = n.Key
	}
	current.Status = n.Status
	current.AssignedTo = n.AssignedTo
	current.Version = n.Version
	b.authoritative[n.TicketID] = current
	return true
}

// View renders the board with overlays applied: the waitlist lane first, then
// one lane per resolver ordered by id. Cards are ordered by ticket number.
func (b *Board) View() []Lane {
	byResolver := map[string][]Card{}
	for id, c := range b.authoritative {
		if m, ok := b.pending[id]; ok {
			c.AssignedTo = m.To
			c.Saving = true
		}
		key := ""
		if c.AssignedTo != nil {
			key = *c.AssignedTo
		}
		byResolver[key] = append(byResolver[key], c)
	}

	resolvers := make([]string, 0, len(byResolver))
	for r := range byResolver {
		if r != "" {
			resolvers = append(resolvers, r)
		}
	}
	sort.Strings(resolvers)

	lanes := make([]Lane, 0, len(resolvers)+1)
	lanes = append(lanes, Lane{Cards: sortCards(byResolver[""])})
	for _, r := range resolvers {
		lanes = append(lanes, Lane{ResolverID: r, Cards: sortCards(byResolver[r])})
	}
	return lanes
}

func sortCards(cards []Card) []Card {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Number != cards[j].Number {
			return cards[i].Number < cards[j].Number
		}
		return cards[i].TicketID < cards[j].TicketID
	})
	return cards
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
