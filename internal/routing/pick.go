package routing

import (
	"sort"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// Candidate is an eligible resolver considered for auto-routing.
type Candidate struct {
	UserID               string
	OpenTickets          int
	AvgResolutionMinutes float64
}

// Candidates joins eligible stat rows with live ticket counts per user.
func Candidates(stats []domain.ResolverStat, openCounts map[string]int) []Candidate {
	out := make([]Candidate, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))
	for i := range stats {
		st := &stats[i]
		if !st.Eligible() {
			continue
		}
		if _, dup := seen[st.UserID]; dup {
			continue
		}
		seen[st.UserID] = struct{}{}
		out = append(out, Candidate{
			UserID:               st.UserID,
			OpenTickets:          openCounts[st.UserID],
			AvgResolutionMinutes: st.AvgResolutionMinutes,
		})
	}
	return out
}

// Pick returns the resolver with the fewest open tickets, then the lowest average
// resolution time, then the lowest user id. ok is false when there is nobody.
func Pick(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.OpenTickets != b.OpenTickets {
			return a.OpenTickets < b.OpenTickets
		}
		if a.AvgResolutionMinutes != b.AvgResolutionMinutes {
			return a.AvgResolutionMinutes < b.AvgResolutionMinutes
		}
		return a.UserID < b.UserID
	})
	return sorted[0], true
}
