// Package sla computes ticket deadlines and tracks paused SLA time.
package sla

import (
	"time"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// DefaultTargets are used when configuration does not override a priority.
var DefaultTargets = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityLow:    72 * time.Hour,
	domain.TicketPriorityMedium: 24 * time.Hour,
	domain.TicketPriorityHigh:   8 * time.Hour,
	domain.TicketPriorityUrgent: 2 * time.Hour,
}

// Policy is the resolution target table.
type Policy struct {
	targets   map[domain.TicketPriority]time.Duration
	overrides map[string]map[domain.TicketPriority]time.Duration
}

// NewPolicy builds a policy. Missing priorities fall back to DefaultTargets.
func NewPolicy(targets map[domain.TicketPriority]time.Duration, overrides map[string]map[domain.TicketPriority]time.Duration) *Policy {
	merged := make(map[domain.TicketPriority]time.Duration, len(DefaultTargets))
	for p, d := range DefaultTargets {
		merged[p] = d
	}
	for p, d := range targets {
		if d > 0 {
			merged[p] = d
		}
	}
	if overrides == nil {
		overrides = map[string]map[domain.TicketPriority]time.Duration{}
	}
	return &Policy{targets: merged, overrides: overrides}
}

// Target returns the resolution window for a category and priority.
func (p *Policy) Target(category string, priority domain.TicketPriority) time.Duration {
	if byPriority, ok := p.overrides[category]; ok {
		if d, ok := byPriority[priority]; ok && d > 0 {
			return d
		}
	}
	if d, ok := p.targets[priority]; ok {
		return d
	}
	return p.targets[domain.TicketPriorityMedium]
}

// ComputeDeadline returns the SLA deadline of a ticket created at createdAt.
func (p *Policy) ComputeDeadline(category string, priority domain.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(p.Target(category, priority))
}
