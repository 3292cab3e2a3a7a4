// internal/handlers/rancher/rancher_handler.go
package rancher

import (
	"errors"
	"net/http"
	"strconv"

	"pasturelink-service/internal/domain/rancher"
	xerrors "pasturelink-service/internal/pkg/errors"
	"pasturelink-service/internal/pkg/response"
	service "pasturelink-service/internal/service/rancher"

	"github.com/gin-gonic/gin"
)

type RancherHandler struct {
	rancherService *service.RancherService
}

func NewRancherHandler(rancherService *service.RancherService) *RancherHandler {
	return &RancherHandler{
		rancherService: rancherService,
	}
}

// SubmitApplication registers a rancher application
func (h *RancherHandler) SubmitApplication(c *gin.Context) {
	var req rancher.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid application", err)
		return
	}

	result, err := h.rancherService.SubmitApplication(c.Request.Context(), &req)
	if err != nil {
		respondErr(c, "failed to process application", err)
		return
	}

	response.Success(c, http.StatusCreated, "application received", result)
}

// Get retrieves a rancher by ID
func (h *RancherHandler) Get(c *gin.Context) {
	id, err := rancherID(c)
	if err != nil {
		response.ValidationError(c, "invalid rancher ID", err)
		return
	}

	result, err := h.rancherService.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "rancher not found", err)
		return
	}

	response.Success(c, http.StatusOK, "rancher retrieved", result)
}

// List retrieves ranchers with filters
func (h *RancherHandler) List(c *gin.Context) {
	var filters rancher.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	ranchers, total, err := h.rancherService.List(c.Request.Context(), &filters)
	if err != nil {
		respondErr(c, "failed to list ranchers", err)
		return
	}

	response.Success(c, http.StatusOK, "ranchers retrieved", gin.H{
		"ranchers": ranchers,
		"total":    total,
	})
}

// UpdateStatus pauses or resumes a rancher
func (h *RancherHandler) UpdateStatus(c *gin.Context) {
	id, err := rancherID(c)
	if err != nil {
		response.ValidationError(c, "invalid rancher ID", err)
		return
	}

	var req rancher.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.rancherService.SetActiveStatus(c.Request.Context(), id, rancher.ActiveStatus(req.ActiveStatus))
	if err != nil {
		respondErr(c, "failed to update status", err)
		return
	}

	response.Success(c, http.StatusOK, "status updated", result)
}

// UpdateOnboarding advances a rancher's onboarding stage
func (h *RancherHandler) UpdateOnboarding(c *gin.Context) {
	id, err := rancherID(c)
	if err != nil {
		response.ValidationError(c, "invalid rancher ID", err)
		return
	}

	var req rancher.UpdateOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.rancherService.AdvanceOnboarding(c.Request.Context(), id, rancher.OnboardingStatus(req.OnboardingStatus))
	if err != nil {
		respondErr(c, "failed to advance onboarding", err)
		return
	}

	response.Success(c, http.StatusOK, "onboarding advanced", result)
}

// UpdateCapacity adjusts a rancher's capacity limit
func (h *RancherHandler) UpdateCapacity(c *gin.Context) {
	id, err := rancherID(c)
	if err != nil {
		response.ValidationError(c, "invalid rancher ID", err)
		return
	}

	var req rancher.UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.rancherService.SetCapacityLimit(c.Request.Context(), id, req.MaxActiveReferrals)
	if err != nil {
		respondErr(c, "failed to update capacity", err)
		return
	}

	response.Success(c, http.StatusOK, "capacity updated", result)
}

func rancherID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func respondErr(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, message)
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, message, err)
	case errors.Is(err, xerrors.ErrInvalidTransition), errors.Is(err, xerrors.ErrConflict):
		response.Conflict(c, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, nil)
	}
}
