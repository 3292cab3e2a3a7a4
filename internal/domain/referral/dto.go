// internal/domain/referral/dto.go
package referral

type ApproveRequest struct {
	// Defaults to the stored suggestion when absent.
	OverrideRancherID *int64 `json:"override_rancher_id"`
}

type ReassignRequest struct {
	RancherID int64 `json:"rancher_id" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	// Required when closing as won, ignored otherwise.
	SaleAmount string `json:"sale_amount"`
	Notes      string `json:"notes"`
}

type ListFilters struct {
	Status    string `form:"status"`
	RancherID int64  `form:"rancher_id"`
	BuyerID   int64  `form:"buyer_id"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}
