// internal/domain/buyer/dto.go
package buyer

type ApplicationRequest struct {
	FullName   string   `json:"full_name" binding:"required,max=255"`
	Email      string   `json:"email" binding:"required,email,max=255"`
	Phone      string   `json:"phone" binding:"max=20"`
	State      string   `json:"state" binding:"required,len=2"`
	OrderType  string   `json:"order_type" binding:"omitempty,oneof=whole half quarter"`
	BudgetBand string   `json:"budget_band"`
	Interests  []string `json:"interests"`
	Notes      string   `json:"notes"`
}

// SuggestedRancher is the public identity returned to the intake caller.
// Contact details stay internal until an operator approves the introduction.
type SuggestedRancher struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type ApplicationResult struct {
	BuyerID          int64             `json:"buyer_id"`
	Segment          Segment           `json:"segment"`
	IntentScore      int               `json:"intent_score"`
	IntentClass      IntentClass       `json:"intent_class"`
	ReferralID       int64             `json:"referral_id,omitempty"`
	ReferralRef      string            `json:"referral_reference,omitempty"`
	Matched          bool              `json:"matched"`
	SuggestedRancher *SuggestedRancher `json:"suggested_rancher,omitempty"`
}

type ListFilters struct {
	Segment     string `form:"segment" binding:"omitempty,oneof=beef_buyer community"`
	IntentClass string `form:"intent_class" binding:"omitempty,oneof=high medium low"`
	State       string `form:"state" binding:"omitempty,len=2"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}
