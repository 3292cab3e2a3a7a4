// internal/domain/rancher/dto.go
package rancher

type ApplicationRequest struct {
	RanchName          string   `json:"ranch_name" binding:"required,max=255"`
	ContactName        string   `json:"contact_name" binding:"required,max=255"`
	Email              string   `json:"email" binding:"required,email,max=255"`
	Phone              string   `json:"phone" binding:"max=20"`
	State              string   `json:"state" binding:"required,len=2"`
	AdditionalStates   []string `json:"additional_states"`
	MaxActiveReferrals int      `json:"max_active_referrals" binding:"omitempty,min=1"`
}

type UpdateStatusRequest struct {
	ActiveStatus string `json:"active_status" binding:"required,oneof=active paused at_capacity pending_onboarding"`
}

type UpdateOnboardingRequest struct {
	OnboardingStatus string `json:"onboarding_status" binding:"required,oneof=docs_sent agreement_signed verification_complete live"`
}

type UpdateCapacityRequest struct {
	MaxActiveReferrals int `json:"max_active_referrals" binding:"required,min=1"`
}

type ListFilters struct {
	State         string `form:"state" binding:"omitempty,len=2"`
	ActiveStatus  string `form:"active_status" binding:"omitempty,oneof=active paused at_capacity pending_onboarding"`
	MatchableOnly bool   `form:"matchable_only"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}
