// internal/domain/rancher/entity.go
package rancher

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type ActiveStatus string

const (
	StatusActive            ActiveStatus = "active"
	StatusPaused            ActiveStatus = "paused"
	StatusAtCapacity        ActiveStatus = "at_capacity"
	StatusPendingOnboarding ActiveStatus = "pending_onboarding"
)

type OnboardingStatus string

const (
	OnboardingDocsSent             OnboardingStatus = "docs_sent"
	OnboardingAgreementSigned      OnboardingStatus = "agreement_signed"
	OnboardingVerificationComplete OnboardingStatus = "verification_complete"
	OnboardingLive                 OnboardingStatus = "live"
)

// DefaultMaxActiveReferrals applies when a rancher record carries no explicit
// limit. Defaulting happens once, at the persistence boundary.
const DefaultMaxActiveReferrals = 5

// DefaultPerformanceScore is the neutral starting score for new ranchers.
const DefaultPerformanceScore = 50

type Rancher struct {
	ID          int64          `json:"id" db:"id"`
	RanchName   string         `json:"ranch_name" db:"ranch_name"`
	ContactName string         `json:"contact_name" db:"contact_name"`
	Email       string         `json:"email" db:"email"`
	Phone       sql.NullString `json:"phone,omitempty" db:"phone"`

	// Coverage: primary state plus any additional states served.
	State            string         `json:"state" db:"state"`
	AdditionalStates pq.StringArray `json:"additional_states,omitempty" db:"additional_states"`

	ActiveStatus     ActiveStatus     `json:"active_status" db:"active_status"`
	AgreementSigned  bool             `json:"agreement_signed" db:"agreement_signed"`
	OnboardingStatus OnboardingStatus `json:"onboarding_status,omitempty" db:"onboarding_status"`

	// Capacity ledger fields. CurrentActiveReferrals is mutated only through
	// the capacity ledger, never written directly by callers.
	CurrentActiveReferrals int `json:"current_active_referrals" db:"current_active_referrals"`
	MaxActiveReferrals     int `json:"max_active_referrals" db:"max_active_referrals"`

	PerformanceScore int          `json:"performance_score" db:"performance_score"`
	LastAssignedAt   sql.NullTime `json:"last_assigned_at,omitempty" db:"last_assigned_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Matchable reports whether the rancher may receive new introductions at all.
// Capacity headroom is checked separately since it changes per referral.
func (r *Rancher) Matchable() bool {
	if r.ActiveStatus != StatusActive {
		return false
	}
	if !r.AgreementSigned {
		return false
	}
	return r.OnboardingStatus == "" || r.OnboardingStatus == OnboardingLive
}

// ServesState reports whether the rancher covers the given two-letter state,
// either as the primary state or one of the additional served states.
func (r *Rancher) ServesState(state string) bool {
	if r.State == state {
		return true
	}
	for _, s := range r.AdditionalStates {
		if s == state {
			return true
		}
	}
	return false
}

// HasHeadroom reports strict capacity headroom.
func (r *Rancher) HasHeadroom() bool {
	return r.CurrentActiveReferrals < r.MaxActiveReferrals
}
