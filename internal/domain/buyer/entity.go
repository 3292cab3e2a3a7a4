// internal/domain/buyer/entity.go
package buyer

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Segment gates whether matching is attempted at all.
type Segment string

const (
	SegmentBeefBuyer Segment = "beef_buyer"
	SegmentCommunity Segment = "community"
)

// IntentClass buckets the numeric intent score.
type IntentClass string

const (
	IntentHigh   IntentClass = "high"
	IntentMedium IntentClass = "medium"
	IntentLow    IntentClass = "low"
)

// Referral-status mirror values for buyers that never entered the referral
// pipeline. Once a referral exists, the mirror tracks the referral status
// string directly.
const (
	StandingUnmatched       = "unmatched"
	StandingCommunity       = "community"
	StandingPendingApproval = "pending_approval"
)

// Order types a buyer can declare.
const (
	OrderWhole   = "whole"
	OrderHalf    = "half"
	OrderQuarter = "quarter"
)

// Budget bands as submitted on the application form.
const (
	BudgetOver2000   = "$2000+"
	Budget1000To2000 = "$1000-$2000"
	Budget500To1000  = "$500-$1000"
	BudgetUnder500   = "Under $500"
)

type Buyer struct {
	ID        int64          `json:"id" db:"id"`
	FullName  string         `json:"full_name" db:"full_name"`
	Email     string         `json:"email" db:"email"`
	Phone     sql.NullString `json:"phone,omitempty" db:"phone"`
	State     string         `json:"state" db:"state"`

	// Declared purchase signals
	OrderType  string         `json:"order_type" db:"order_type"`
	BudgetBand string         `json:"budget_band" db:"budget_band"`
	Interests  pq.StringArray `json:"interests" db:"interests"`
	Notes      sql.NullString `json:"notes,omitempty" db:"notes"`

	// Computed once at submission, never recomputed
	Segment     Segment     `json:"segment" db:"segment"`
	IntentScore int         `json:"intent_score" db:"intent_score"`
	IntentClass IntentClass `json:"intent_class" db:"intent_class"`

	// Mirror of the buyer's current referral status, maintained by the
	// lifecycle service as a side effect of referral transitions.
	ReferralStatus string `json:"referral_status" db:"referral_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type BuyerStats struct {
	TotalBuyers     int64 `json:"total_buyers"`
	BeefBuyers      int64 `json:"beef_buyers"`
	CommunityBuyers int64 `json:"community_buyers"`
	HighIntent      int64 `json:"high_intent"`
}
