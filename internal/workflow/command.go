// Package workflow is the ticket state machine. Every mutation is expressed as a
// Command and applied through Apply, which runs the command's guard, mutates a
// copy of the ticket and returns the activity record describing the change.
package workflow

import "github.com/spec-kit/facility-tickets/internal/domain"

// Command is one requested change to a ticket.
type Command interface {
	Name() string
	isCommand()
}

// Claim assigns the ticket to the calling resolver. Group and Stat must be
// loaded from the same transaction that persists the result.
type Claim struct {
	Group *domain.SkillGroup
	Stat  *domain.ResolverStat
}

// Reassign sets or clears the assignee. Admin only; skill gates are bypassed.
// Auto marks assignments made by the router rather than by a person.
type Reassign struct {
	To   *string
	Auto bool
}

// ChangeStatus requests a status change.
type ChangeStatus struct {
	To      domain.TicketStatus
	Comment string
}

// ForceClose closes the ticket from any non-closed state. Admin only.
type ForceClose struct {
	Comment string
}

// EditContent updates title and/or description.
type EditContent struct {
	Title       *string
	Description *string
}

// AttachPhoto overwrites one photo slot.
type AttachPhoto struct {
	Slot domain.PhotoSlot
	URL  string
}

// PauseSLA stops the SLA clock.
type PauseSLA struct {
	Reason string
}

// ResumeSLA restarts the SLA clock.
type ResumeSLA struct{}

// PauseWork marks in-progress work as paused.
type PauseWork struct {
	Reason string
}

// ResumeWork clears the work pause.
type ResumeWork struct{}

// Delete requests a hard delete. AnySkill lifts the technical skill gate for
// resolver-role owners.
type Delete struct {
	AnySkill bool
}

// EvaluateSLA only re-evaluates the breach flag. Used by the sweeper.
type EvaluateSLA struct{}

func (Claim) Name() string        { return "claim" }
func (Reassign) Name() string     { return "reassign" }
func (ChangeStatus) Name() string { return "change_status" }
func (ForceClose) Name() string   { return "force_close" }
func (EditContent) Name() string  { return "edit_content" }
func (AttachPhoto) Name() string  { return "attach_photo" }
func (PauseSLA) Name() string     { return "pause_sla" }
func (ResumeSLA) Name() string    { return "resume_sla" }
func (PauseWork) Name() string    { return "pause_work" }
func (ResumeWork) Name() string   { return "resume_work" }
func (Delete) Name() string       { return "delete" }
func (EvaluateSLA) Name() string  { return "evaluate_sla" }

func (Claim) isCommand()        {}
func (Reassign) isCommand()     {}
func (ChangeStatus) isCommand() {}
func (ForceClose) isCommand()   {}
func (EditContent) isCommand()  {}
func (AttachPhoto) isCommand()  {}
func (PauseSLA) isCommand()     {}
func (ResumeSLA) isCommand()    {}
func (PauseWork) isCommand()    {}
func (ResumeWork) isCommand()   {}
func (Delete) isCommand()       {}
func (EvaluateSLA) isCommand()  {}
