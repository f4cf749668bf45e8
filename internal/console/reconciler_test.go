package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

type fakeServer struct {
	mu        sync.Mutex
	cards     map[string]Card
	commitErr error
	snapErr   error
	gate      chan struct{}
	commits   []Move
}

func newFakeServer(cards ...Card) *fakeServer {
	s := &fakeServer{cards: map[string]Card{}}
	for _, c := range cards {
		s.cards[c.TicketID] = c
	}
	return s
}

func (s *fakeServer) Commit(ctx context.Context, move Move) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, move)
	if s.commitErr != nil {
		return s.commitErr
	}
	c := s.cards[move.TicketID]
	if c.Version != move.ExpectedVersion {
		return apperrors.NewConflict("ticket was modified by someone else", map[string]any{"reason": "stale_version"})
	}
	c.AssignedTo = move.To
	c.Version++
	s.cards[move.TicketID] = c
	return nil
}

// reassign simulates another dispatcher committing first and returns the
// notification the server would push.
func (s *fakeServer) reassign(ticketID string, to *string) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cards[ticketID]
	c.AssignedTo = to
	c.Status = "assigned"
	c.Version++
	s.cards[ticketID] = c
	return Notification{TicketID: ticketID, Status: c.Status, AssignedTo: to, Version: c.Version}
}

func (s *fakeServer) Snapshot(ctx context.Context) ([]Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	out := make([]Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c)
	}
	return out, nil
}

func newTestReconciler(t *testing.T, server *fakeServer) *Reconciler {
	t.Helper()
	r := NewReconciler(server, server, nil)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return r
}

func TestReconciler_OptimisticMoveThenReconcile(t *testing.T) {
	server := newFakeServer(card("t1", 1, nil, 1))
	server.gate = make(chan struct{})
	r := newTestReconciler(t, server)

	if err := r.Drag(context.Background(), "t1", strp("amir")); err != nil {
		t.Fatalf("drag: %v", err)
	}
	lanes := r.View()
	if got := laneIDs(lanes)["amir"]; len(got) != 1 || !lanes[1].Cards[0].Saving {
		t.Fatalf("expected saving card in amir's lane, got %+v", lanes)
	}
	if r.Notify(Notification{TicketID: "t1", Status: "assigned", AssignedTo: strp("zoe"), Version: 5}) {
		t.Error("expected notification suppressed while saving")
	}
	if err := r.Drag(context.Background(), "t1", strp("zoe")); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("expected CONFLICT for a second drag, got %v", err)
	}

	close(server.gate)
	r.Wait()

	lanes = r.View()
	if len(lanes) != 2 || lanes[1].ResolverID != "amir" || lanes[1].Cards[0].Saving {
		t.Fatalf("expected committed card in amir's lane, got %+v", lanes)
	}
	if lanes[1].Cards[0].Version != 2 {
		t.Errorf("expected server version 2, got %d", lanes[1].Cards[0].Version)
	}
	if len(server.commits) != 1 || server.commits[0].ExpectedVersion != 1 {
		t.Errorf("expected one commit at version 1, got %+v", server.commits)
	}
}

func TestReconciler_RollsBackRejectedMove(t *testing.T) {
	server := newFakeServer(card("t1", 1, strp("amir"), 4))
	server.commitErr = apperrors.NewConflict("ticket was modified by someone else", nil)
	r := newTestReconciler(t, server)

	if err := r.Drag(context.Background(), "t1", nil); err != nil {
		t.Fatalf("drag: %v", err)
	}
	r.Wait()

	if got := laneIDs(r.View())["amir"]; len(got) != 1 {
		t.Errorf("expected the card back in amir's lane, got %v", got)
	}
	select {
	case err := <-r.Errors():
		var moveErr *MoveError
		if !errors.As(err, &moveErr) || moveErr.Move.TicketID != "t1" {
			t.Fatalf("expected MoveError for t1, got %v", err)
		}
		if !apperrors.HasCode(err, apperrors.CodeConflict) {
			t.Errorf("expected wrapped CONFLICT, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error on the channel")
	}
}

func TestReconciler_ConcurrentWriterWinsOverRejectedMove(t *testing.T) {
	server := newFakeServer(card("T-001", 1, nil, 1))
	server.gate = make(chan struct{})
	r := newTestReconciler(t, server)

	if err := r.Drag(context.Background(), "T-001", strp("R-2")); err != nil {
		t.Fatalf("drag: %v", err)
	}
	if r.Notify(server.reassign("T-001", strp("R-3"))) {
		t.Fatal("expected notification suppressed while saving")
	}
	close(server.gate)
	r.Wait()

	lanes := laneIDs(r.View())
	if got := lanes["R-3"]; len(got) != 1 || got[0] != "T-001" {
		t.Fatalf("expected T-001 in R-3's lane, got %v", lanes)
	}
	if got := lanes[""]; len(got) != 0 {
		t.Errorf("expected an empty waitlist, got %v", got)
	}
	if c, _ := r.board.Card("T-001"); c.Version != 2 {
		t.Errorf("expected version 2, got %d", c.Version)
	}
	select {
	case err := <-r.Errors():
		if !apperrors.HasCode(err, apperrors.CodeConflict) {
			t.Errorf("expected CONFLICT, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error on the channel")
	}
}

func TestReconciler_RefreshFailureAppliesNewerHeldNotification(t *testing.T) {
	server := newFakeServer(card("t1", 1, nil, 1))
	server.gate = make(chan struct{})
	r := newTestReconciler(t, server)
	server.snapErr = errors.New("offline")

	if err := r.Drag(context.Background(), "t1", strp("zoe")); err != nil {
		t.Fatalf("drag: %v", err)
	}
	r.Notify(Notification{TicketID: "t1", Status: "assigned", AssignedTo: strp("zoe"), Version: 2})
	r.Notify(Notification{TicketID: "t1", Status: "assigned", AssignedTo: strp("omar"), Version: 3})
	close(server.gate)
	r.Wait()

	lanes := laneIDs(r.View())
	if got := lanes["omar"]; len(got) != 1 {
		t.Fatalf("expected the later reassignment to win, got %v", lanes)
	}
}

func TestReconciler_RefreshFailureKeepsMove(t *testing.T) {
	server := newFakeServer(card("t1", 1, nil, 1))
	r := newTestReconciler(t, server)
	server.snapErr = errors.New("offline")

	if err := r.Drag(context.Background(), "t1", strp("zoe")); err != nil {
		t.Fatalf("drag: %v", err)
	}
	r.Wait()

	if got := laneIDs(r.View())["zoe"]; len(got) != 1 {
		t.Errorf("expected the move applied locally, got %v", got)
	}
	select {
	case err := <-r.Errors():
		if err == nil {
			t.Fatal("expected refresh error")
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error on the channel")
	}
}

func TestReconciler_NoOpAndUnknownDrags(t *testing.T) {
	server := newFakeServer(card("t1", 1, strp("amir"), 1))
	r := newTestReconciler(t, server)

	if err := r.Drag(context.Background(), "t1", strp("amir")); err != nil {
		t.Fatalf("expected same-lane drop to be a no-op, got %v", err)
	}
	r.Wait()
	if len(server.commits) != 0 {
		t.Errorf("expected no commit, got %d", len(server.commits))
	}
	if err := r.Drag(context.Background(), "nope", nil); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestReconciler_ReportNeverBlocks(t *testing.T) {
	r := NewReconciler(newFakeServer(), newFakeServer(), nil)
	for i := 0; i < cap(r.errs)+10; i++ {
		r.report(errors.New("boom"))
	}
	if len(r.errs) != cap(r.errs) {
		t.Errorf("expected a full buffer, got %d", len(r.errs))
	}
}
