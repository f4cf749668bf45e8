package domain

import "time"

// ResolverStat records a resolver's eligibility for one skill group at one property.
type ResolverStat struct {
	ID                   string
	UserID               string
	PropertyID           string
	SkillGroupID         string
	Active               bool
	Available            bool
	CurrentLoad          int
	AvgResolutionMinutes float64
	ResolvedCount        int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Eligible reports whether the row lets its user receive tickets.
func (s *ResolverStat) Eligible() bool {
	return s != nil && s.Active && s.Available
}
