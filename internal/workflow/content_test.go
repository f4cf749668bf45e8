package workflow

import (
	"testing"
	"time"

	"github.com/spec-kit/facility-tickets/internal/domain"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

func TestEditContent(t *testing.T) {
	tk := newTicket(domain.TicketStatusInProgress)

	out := mustApply(t, tk, owner, EditContent{Title: strp("Leaking kitchen tap")}, t0)
	if out.Ticket.Title != "Leaking kitchen tap" || out.Ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("expected title edited and status kept, got %q %s", out.Ticket.Title, out.Ticket.Status)
	}
	if _, ok := out.Record.NewValue["description"]; ok {
		t.Error("expected only changed fields in the record")
	}

	_, err := Apply(tk, resolver, EditContent{Title: strp("x")}, t0)
	expectCode(t, err, apperrors.CodeForbidden)

	_, err = Apply(tk, owner, EditContent{Title: strp(" ")}, t0)
	expectCode(t, err, apperrors.CodeValidation)

	_, err = Apply(tk, owner, EditContent{}, t0)
	expectCode(t, err, apperrors.CodeValidation)

	same := mustApply(t, tk, admin, EditContent{Title: strp(tk.Title)}, t0)
	if same.Changed() {
		t.Error("expected unchanged content to be a no-op")
	}
}

func TestAttachPhoto(t *testing.T) {
	t.Run("one record per upload", func(t *testing.T) {
		tk := newTicket(domain.TicketStatusInProgress)
		first := mustApply(t, tk, resolver, AttachPhoto{Slot: domain.PhotoSlotBefore, URL: "https://cdn/a.jpg"}, t0)
		second := mustApply(t, first.Ticket, resolver, AttachPhoto{Slot: domain.PhotoSlotBefore, URL: "https://cdn/b.jpg"}, t0)
		if second.Record.Action != domain.ActionPhotoBefore {
			t.Fatalf("expected photo_before_uploaded, got %s", second.Record.Action)
		}
		if second.Record.OldValue["photo_before_url"] != "https://cdn/a.jpg" {
			t.Errorf("expected previous url in record, got %v", second.Record.OldValue["photo_before_url"])
		}
		if *second.Ticket.PhotoBeforeURL != "https://cdn/b.jpg" {
			t.Errorf("expected overwrite, got %s", *second.Ticket.PhotoBeforeURL)
		}
	})
	t.Run("owner before assignment", func(t *testing.T) {
		tk := claimable(domain.TicketStatusOpen)
		out := mustApply(t, tk, owner, AttachPhoto{Slot: domain.PhotoSlotAfter, URL: "https://cdn/c.jpg"}, t0)
		if out.Record.Action != domain.ActionPhotoAfter {
			t.Errorf("expected photo_after_uploaded, got %s", out.Record.Action)
		}
	})
	t.Run("owner after assignment", func(t *testing.T) {
		_, err := Apply(newTicket(domain.TicketStatusAssigned), owner, AttachPhoto{Slot: domain.PhotoSlotBefore, URL: "https://cdn/d.jpg"}, t0)
		expectCode(t, err, apperrors.CodeForbidden)
	})
	t.Run("bad slot", func(t *testing.T) {
		_, err := Apply(newTicket(domain.TicketStatusAssigned), resolver, AttachPhoto{Slot: "side", URL: "https://cdn/e.jpg"}, t0)
		expectCode(t, err, apperrors.CodeValidation)
	})
}

func TestPauseSLA(t *testing.T) {
	tk := newTicket(domain.TicketStatusAssigned)

	_, err := Apply(tk, resolver, PauseSLA{Reason: "parts"}, t0)
	expectCode(t, err, apperrors.CodeForbidden)

	_, err = Apply(tk, admin, PauseSLA{Reason: "   "}, t0)
	expectCode(t, err, apperrors.CodeValidation)

	paused := mustApply(t, tk, admin, PauseSLA{Reason: "tenant away"}, t0)
	if paused.Record.Action != domain.ActionSLAPaused || !paused.Ticket.SLAPaused {
		t.Fatalf("expected sla_paused, got %+v", paused.Record)
	}
	if again := mustApply(t, paused.Ticket, admin, PauseSLA{Reason: "still away"}, t0.Add(time.Minute)); again.Changed() {
		t.Error("expected repeated pause to be a no-op")
	}

	resumed := mustApply(t, paused.Ticket, admin, ResumeSLA{}, t0.Add(2*time.Hour))
	if resumed.Record.Action != domain.ActionSLAResumed {
		t.Fatalf("expected sla_resumed, got %s", resumed.Record.Action)
	}
	if resumed.Record.NewValue["paused_seconds"] != int64(7200) {
		t.Errorf("expected 7200 paused seconds, got %v", resumed.Record.NewValue["paused_seconds"])
	}
	if again := mustApply(t, resumed.Ticket, admin, ResumeSLA{}, t0.Add(3*time.Hour)); again.Changed() {
		t.Error("expected repeated resume to be a no-op")
	}

	_, err = Apply(newTicket(domain.TicketStatusResolved), admin, PauseSLA{Reason: "late"}, t0)
	expectCode(t, err, apperrors.CodeInvalidTransition)
}

func TestPauseWork(t *testing.T) {
	_, err := Apply(newTicket(domain.TicketStatusAssigned), resolver, PauseWork{Reason: "lunch"}, t0)
	expectCode(t, err, apperrors.CodeInvalidTransition)

	_, err = Apply(newTicket(domain.TicketStatusInProgress), resolver, PauseWork{}, t0)
	expectCode(t, err, apperrors.CodeValidation)

	_, err = Apply(newTicket(domain.TicketStatusInProgress), owner, PauseWork{Reason: "lunch"}, t0)
	expectCode(t, err, apperrors.CodeForbidden)

	paused := mustApply(t, newTicket(domain.TicketStatusInProgress), resolver, PauseWork{Reason: "lunch"}, t0)
	if !paused.Ticket.WorkPaused || paused.Ticket.WorkPauseReason != "lunch" {
		t.Fatal("expected work paused with reason")
	}
	if again := mustApply(t, paused.Ticket, resolver, PauseWork{Reason: "coffee"}, t0); again.Changed() {
		t.Error("expected repeated pause to be a no-op")
	}
	resumed := mustApply(t, paused.Ticket, resolver, ResumeWork{}, t0)
	if resumed.Ticket.WorkPaused || resumed.Record.OldValue["reason"] != "lunch" {
		t.Errorf("expected resume recording the old reason, got %+v", resumed.Record)
	}
	if again := mustApply(t, resumed.Ticket, resolver, ResumeWork{}, t0); again.Changed() {
		t.Error("expected repeated resume to be a no-op")
	}
}
