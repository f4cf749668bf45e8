package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/sla"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

func applyEditContent(t *domain.Ticket, actor *domain.Actor, c EditContent) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapEditContent).Err(); err != nil {
		return "", nil, nil, err
	}
	if c.Title == nil && c.Description == nil {
		return "", nil, nil, apperrors.NewValidationError("title or description required", nil)
	}
	oldVal := map[string]any{}
	newVal := map[string]any{}
	if c.Title != nil {
		title := strings.TrimSpace(*c.Title)
		if title == "" {
			return "", nil, nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		if title != t.Title {
			oldVal["title"] = t.Title
			newVal["title"] = title
			t.Title = title
		}
	}
	if c.Description != nil {
		description := strings.TrimSpace(*c.Description)
		if description != t.Description {
			oldVal["description"] = t.Description
			newVal["description"] = description
			t.Description = description
		}
	}
	if len(newVal) == 0 {
		return "", nil, nil, nil
	}
	return domain.ActionContentEdited, oldVal, newVal, nil
}

func applyAttachPhoto(t *domain.Ticket, actor *domain.Actor, c AttachPhoto) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapAttachPhoto).Err(); err != nil {
		return "", nil, nil, err
	}
	url := strings.TrimSpace(c.URL)
	if url == "" {
		return "", nil, nil, apperrors.NewValidationError("photo url required", nil)
	}
	var (
		field  **string
		action domain.ActivityAction
		key    string
	)
	switch c.Slot {
	case domain.PhotoSlotBefore:
		field, action, key = &t.PhotoBeforeURL, domain.ActionPhotoBefore, "photo_before_url"
	case domain.PhotoSlotAfter:
		field, action, key = &t.PhotoAfterURL, domain.ActionPhotoAfter, "photo_after_url"
	default:
		return "", nil, nil, apperrors.NewValidationError("photo slot must be before or after", map[string]any{"slot": c.Slot})
	}
	previous := deref(*field)
	*field = &url
	return action, map[string]any{key: previous}, map[string]any{key: url}, nil
}

func applyPauseSLA(t *domain.Ticket, actor *domain.Actor, c PauseSLA, now time.Time) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapManageSLA).Err(); err != nil {
		return "", nil, nil, err
	}
	reason := strings.TrimSpace(c.Reason)
	if reason == "" {
		return "", nil, nil, apperrors.NewValidationError("a reason is required to pause the SLA", nil)
	}
	if t.Status.Terminal() {
		return "", nil, nil, apperrors.NewInvalidTransition("the SLA of a resolved or closed ticket cannot be paused", map[string]any{"status": t.Status})
	}
	if !sla.Pause(t, now) {
		return "", nil, nil, nil
	}
	return domain.ActionSLAPaused,
		map[string]any{"sla_paused": false},
		map[string]any{"sla_paused": true, "reason": reason},
		nil
}

func applyResumeSLA(t *domain.Ticket, actor *domain.Actor, now time.Time) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapManageSLA).Err(); err != nil {
		return "", nil, nil, err
	}
	before := t.SLAPausedTotal
	if !sla.Resume(t, now) {
		return "", nil, nil, nil
	}
	return domain.ActionSLAResumed,
		map[string]any{"sla_paused": true},
		map[string]any{
			"sla_paused":           false,
			"paused_seconds":       int64((t.SLAPausedTotal - before).Seconds()),
			"total_paused_seconds": int64(t.SLAPausedTotal.Seconds()),
		},
		nil
}

func applyPauseWork(t *domain.Ticket, actor *domain.Actor, c PauseWork) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapWork).Err(); err != nil {
		return "", nil, nil, err
	}
	reason := strings.TrimSpace(c.Reason)
	if reason == "" {
		return "", nil, nil, apperrors.NewValidationError("a reason is required to pause work", nil)
	}
	if t.Status != domain.TicketStatusInProgress {
		return "", nil, nil, apperrors.NewInvalidTransition("only in-progress work can be paused", map[string]any{"status": t.Status})
	}
	if t.WorkPaused {
		return "", nil, nil, nil
	}
	t.WorkPaused = true
	t.WorkPauseReason = reason
	return domain.ActionWorkPaused,
		map[string]any{"work_paused": false},
		map[string]any{"work_paused": true, "reason": reason},
		nil
}

func applyResumeWork(t *domain.Ticket, actor *domain.Actor) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapWork).Err(); err != nil {
		return "", nil, nil, err
	}
	if !t.WorkPaused {
		return "", nil, nil, nil
	}
	reason := t.WorkPauseReason
	t.WorkPaused = false
	t.WorkPauseReason = ""
	return domain.ActionWorkResumed,
		map[string]any{"work_paused": true, "reason": reason},
		map[string]any{"work_paused": false},
		nil
}
