// internal/domain/referral/entity.go
package referral

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRate is the platform-wide commission on closed-won sales.
// Fixed policy, not configurable per referral.
var CommissionRate = decimal.RequireFromString("0.10")

// CommissionFor computes the commission due on a sale amount.
func CommissionFor(saleAmount decimal.Decimal) decimal.Decimal {
	return saleAmount.Mul(CommissionRate)
}

// Referral tracks one introduction of a buyer to a rancher. The buyer fields
// are a snapshot taken at creation time, so later buyer edits never alter an
// in-flight referral. Referrals are retained forever for reporting.
type Referral struct {
	ID        int64  `json:"id" db:"id"`
	Reference string `json:"reference" db:"reference"`
	BuyerID   int64  `json:"buyer_id" db:"buyer_id"`

	// Buyer snapshot
	BuyerName   string         `json:"buyer_name" db:"buyer_name"`
	BuyerEmail  string         `json:"buyer_email" db:"buyer_email"`
	BuyerPhone  sql.NullString `json:"buyer_phone,omitempty" db:"buyer_phone"`
	BuyerState  string         `json:"buyer_state" db:"buyer_state"`
	OrderType   string         `json:"order_type" db:"order_type"`
	BudgetBand  string         `json:"budget_band" db:"budget_band"`
	IntentScore int            `json:"intent_score" db:"intent_score"`
	IntentClass string         `json:"intent_class" db:"intent_class"`
	Notes       sql.NullString `json:"notes,omitempty" db:"notes"`

	// A suggestion is not a commitment: only approval or reassignment sets
	// the assigned rancher and touches the capacity ledger.
	SuggestedRancherID sql.NullInt64 `json:"suggested_rancher_id,omitempty" db:"suggested_rancher_id"`
	AssignedRancherID  sql.NullInt64 `json:"assigned_rancher_id,omitempty" db:"assigned_rancher_id"`

	Status Status `json:"status" db:"status"`

	SaleAmount     decimal.NullDecimal `json:"sale_amount,omitempty" db:"sale_amount"`
	CommissionDue  decimal.NullDecimal `json:"commission_due,omitempty" db:"commission_due"`
	CommissionPaid bool                `json:"commission_paid" db:"commission_paid"`

	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	ApprovedAt  sql.NullTime `json:"approved_at,omitempty" db:"approved_at"`
	IntroSentAt sql.NullTime `json:"intro_sent_at,omitempty" db:"intro_sent_at"`
	ClosedAt    sql.NullTime `json:"closed_at,omitempty" db:"closed_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

type PipelineStats struct {
	ByStatus            map[string]int64 `json:"by_status"`
	TotalCommissionDue  decimal.Decimal  `json:"total_commission_due"`
	TotalCommissionPaid decimal.Decimal  `json:"total_commission_paid"`
}
