package domain

import "time"

// SkillGroup is a per-property routing bucket.
type SkillGroup struct {
	ID             string
	PropertyID     string
	Code           string
	Name           string
	IsManualAssign bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
