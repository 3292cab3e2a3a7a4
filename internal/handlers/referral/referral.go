// internal/handlers/referral/referral_handler.go
package referral

import (
	"errors"
	"net/http"
	"strconv"

	"pasturelink-service/internal/domain/referral"
	xerrors "pasturelink-service/internal/pkg/errors"
	"pasturelink-service/internal/pkg/response"
	service "pasturelink-service/internal/service/referral"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ReferralHandler struct {
	lifecycle *service.LifecycleService
}

func NewReferralHandler(lifecycle *service.LifecycleService) *ReferralHandler {
	return &ReferralHandler{
		lifecycle: lifecycle,
	}
}

// Approve commits a referral's suggested (or overridden) rancher
func (h *ReferralHandler) Approve(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	var req referral.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.lifecycle.Approve(c.Request.Context(), id, req.OverrideRancherID)
	if err != nil {
		respondLifecycleErr(c, "failed to approve referral", err)
		return
	}

	response.Success(c, http.StatusOK, "referral approved", result)
}

// Reassign transfers a referral to a different rancher
func (h *ReferralHandler) Reassign(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	var req referral.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.lifecycle.Reassign(c.Request.Context(), id, req.RancherID)
	if err != nil {
		respondLifecycleErr(c, "failed to reassign referral", err)
		return
	}

	response.Success(c, http.StatusOK, "referral reassigned", result)
}

// Reject closes a pending referral without committing a rancher
func (h *ReferralHandler) Reject(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	var req referral.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.lifecycle.Reject(c.Request.Context(), id, req.Notes)
	if err != nil {
		respondLifecycleErr(c, "failed to reject referral", err)
		return
	}

	response.Success(c, http.StatusOK, "referral rejected", result)
}

// Rematch re-runs the selector for a pending referral
func (h *ReferralHandler) Rematch(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	result, err := h.lifecycle.Rematch(c.Request.Context(), id)
	if err != nil {
		respondLifecycleErr(c, "failed to rematch referral", err)
		return
	}

	response.Success(c, http.StatusOK, "referral rematched", result)
}

// UpdateStatus applies an operator status change, including closing
func (h *ReferralHandler) UpdateStatus(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	var req referral.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	var result *referral.Referral
	switch referral.Status(req.Status) {
	case referral.StatusClosedWon:
		saleAmount, perr := decimal.NewFromString(req.SaleAmount)
		if perr != nil {
			response.ValidationError(c, "invalid sale amount", perr)
			return
		}
		result, err = h.lifecycle.CloseWon(c.Request.Context(), id, saleAmount, req.Notes)
	case referral.StatusClosedLost:
		result, err = h.lifecycle.CloseLost(c.Request.Context(), id, req.Notes)
	default:
		result, err = h.lifecycle.Advance(c.Request.Context(), id, referral.Status(req.Status), req.Notes)
	}
	if err != nil {
		respondLifecycleErr(c, "failed to update referral status", err)
		return
	}

	response.Success(c, http.StatusOK, "referral status updated", result)
}

// MarkCommissionPaid records a commission payout
func (h *ReferralHandler) MarkCommissionPaid(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	result, err := h.lifecycle.MarkCommissionPaid(c.Request.Context(), id)
	if err != nil {
		respondLifecycleErr(c, "failed to mark commission paid", err)
		return
	}

	response.Success(c, http.StatusOK, "commission marked paid", result)
}

// Get retrieves a referral by ID
func (h *ReferralHandler) Get(c *gin.Context) {
	id, err := referralID(c)
	if err != nil {
		response.ValidationError(c, "invalid referral ID", err)
		return
	}

	result, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		respondLifecycleErr(c, "referral not found", err)
		return
	}

	response.Success(c, http.StatusOK, "referral retrieved", result)
}

// List retrieves referrals with filters
func (h *ReferralHandler) List(c *gin.Context) {
	var filters referral.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	referrals, total, err := h.lifecycle.List(c.Request.Context(), &filters)
	if err != nil {
		respondLifecycleErr(c, "failed to list referrals", err)
		return
	}

	response.Success(c, http.StatusOK, "referrals retrieved", gin.H{
		"referrals": referrals,
		"total":     total,
	})
}

// GetStats retrieves pipeline statistics
func (h *ReferralHandler) GetStats(c *gin.Context) {
	stats, err := h.lifecycle.GetStats(c.Request.Context())
	if err != nil {
		respondLifecycleErr(c, "failed to get pipeline stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats retrieved", stats)
}

func referralID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func respondLifecycleErr(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, message)
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, message, err)
	case errors.Is(err, xerrors.ErrAtCapacity),
		errors.Is(err, xerrors.ErrAlreadyApproved),
		errors.Is(err, xerrors.ErrInvalidTransition),
		errors.Is(err, xerrors.ErrNoEligibleRancher),
		errors.Is(err, xerrors.ErrConflict):
		response.Conflict(c, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, nil)
	}
}
