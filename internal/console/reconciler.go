package console

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// Committer persists a move on the server.
type Committer interface {
	Commit(ctx context.Context, move Move) error
}

// SnapshotSource loads the authoritative board.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]Card, error)
}

// MoveError is delivered on Errors when a move could not be saved.
type MoveError struct {
	Move Move
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s: %v", e.Move.TicketID, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// Reconciler applies drags optimistically, commits them in the background and
// reconciles the board with the server afterwards.
type Reconciler struct {
	mu        sync.Mutex
	board     *Board
	committer Committer
	source    SnapshotSource
	errs      chan error
	inflight  sync.WaitGroup
	logger    *zap.Logger
}

// NewReconciler builds a reconciler around an empty board.
func NewReconciler(committer Committer, source SnapshotSource, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		board:     NewBoard(),
		committer: committer,
		source:    source,
		errs:      make(chan error, 64),
		logger:    logger,
	}
}

// Refresh replaces the authoritative snapshot with the server's.
func (r *Reconciler) Refresh(ctx context.Context) error {
	cards, err := r.source.Snapshot(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.board.Replace(cards)
	r.mu.Unlock()
	return nil
}

// Drag moves a ticket to a lane; a nil to is the waitlist. Dropping a card on
// the lane it already occupies does nothing. Otherwise the view changes at
// once and the write happens in the background.
func (r *Reconciler) Drag(ctx context.Context, ticketID string, to *string) error {
	r.mu.Lock()
	card, ok := r.board.Card(ticketID)
	if !ok {
		r.mu.Unlock()
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if r.board.Pending(ticketID) {
		r.mu.Unlock()
		return apperrors.NewConflict("ticket is still saving", map[string]any{"ticket_id": ticketID})
	}
	if sameAssignee(card.AssignedTo, to) {
		r.mu.Unlock()
		return nil
	}
	move := Move{TicketID: ticketID, To: to, ExpectedVersion: card.Version}
	r.board.setPending(move)
	r.inflight.Add(1)
	r.mu.Unlock()

	go r.commit(context.WithoutCancel(ctx), move)
	return nil
}

func (r *Reconciler) commit(ctx context.Context, move Move) {
	defer r.inflight.Done()

	if err := r.committer.Commit(ctx, move); err != nil {
		r.mu.Lock()
		if n, ok := r.board.clearPending(move.TicketID); ok {
			r.board.Apply(n)
		}
		r.mu.Unlock()
		r.logger.Warn("move rejected", zap.String("ticket_id", move.TicketID), zap.Error(err))
		r.report(&MoveError{Move: move, Err: err})
		return
	}

	cards, err := r.source.Snapshot(ctx)
	r.mu.Lock()
	held, wasHeld := r.board.clearPending(move.TicketID)
	if err == nil {
		r.board.Replace(cards)
	} else {
		if card, ok := r.board.Card(move.TicketID); ok {
			card.AssignedTo = move.To
			card.Version = move.ExpectedVersion + 1
			r.board.authoritative[move.TicketID] = card
		}
		// Anything newer than our own write still wins.
		if wasHeld {
			r.board.Apply(held)
		}
	}
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn("refresh after move failed", zap.String("ticket_id", move.TicketID), zap.Error(err))
		r.report(fmt.Errorf("refresh after move: %w", err))
	}
}

// report never blocks; when nobody drains Errors the oldest entry is dropped.
func (r *Reconciler) report(err error) {
	for {
		select {
		case r.errs <- err:
			return
		default:
		}
		select {
		case <-r.errs:
		default:
		}
	}
}

// Notify applies a realtime notification unless the ticket has a write in
// flight. A held notification is superseded by the refresh after a successful
// write and re-applied when the write is rejected or the refresh fails.
func (r *Reconciler) Notify(n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Apply(n)
}

// View returns the current lanes including unsaved moves.
func (r *Reconciler) View() []Lane {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.View()
}

// Errors delivers failed moves and failed refreshes.
func (r *Reconciler) Errors() <-chan error {
	return r.errs
}

// Wait blocks until every started commit has finished.
func (r *Reconciler) Wait() {
	r.inflight.Wait()
}
