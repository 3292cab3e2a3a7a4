// internal/service/matching/matching.go
package matching

import (
	"sort"
	"time"

	"pasturelink-service/internal/domain/rancher"
)

// Eligible filters the rancher population down to those able to serve a
// buyer in the given state: active, agreement signed, onboarding unset or
// live, covering the state, and with strict capacity headroom.
func Eligible(buyerState string, population []rancher.Rancher) []rancher.Rancher {
	eligible := make([]rancher.Rancher, 0, len(population))
	for _, r := range population {
		if !r.Matchable() {
			continue
		}
		if !r.ServesState(buyerState) {
			continue
		}
		if !r.HasHeadroom() {
			continue
		}
		eligible = append(eligible, r)
	}
	return eligible
}

// Select orders the eligible set and picks the best candidate: least loaded
// first, then least recently assigned (never-assigned counts as oldest),
// then highest performance score, then lowest id so repeated runs against
// the same snapshot always pick the same rancher.
func Select(eligible []rancher.Rancher) (*rancher.Rancher, bool) {
	if len(eligible) == 0 {
		return nil, false
	}

	ranked := make([]rancher.Rancher, len(eligible))
	copy(ranked, eligible)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CurrentActiveReferrals != b.CurrentActiveReferrals {
			return a.CurrentActiveReferrals < b.CurrentActiveReferrals
		}
		at, bt := assignedTime(a), assignedTime(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		if a.PerformanceScore != b.PerformanceScore {
			return a.PerformanceScore > b.PerformanceScore
		}
		return a.ID < b.ID
	})

	chosen := ranked[0]
	return &chosen, true
}

func assignedTime(r rancher.Rancher) time.Time {
	if r.LastAssignedAt.Valid {
		return r.LastAssignedAt.Time
	}
	return time.Time{}
}
