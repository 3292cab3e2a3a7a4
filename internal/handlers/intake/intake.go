// internal/handlers/intake/intake_handler.go
package intake

import (
	"errors"
	"net/http"
	"strconv"

	"pasturelink-service/internal/domain/buyer"
	xerrors "pasturelink-service/internal/pkg/errors"
	"pasturelink-service/internal/pkg/response"
	service "pasturelink-service/internal/service/intake"

	"github.com/gin-gonic/gin"
)

type IntakeHandler struct {
	intakeService *service.IntakeService
}

func NewIntakeHandler(intakeService *service.IntakeService) *IntakeHandler {
	return &IntakeHandler{
		intakeService: intakeService,
	}
}

// SubmitBuyer processes a buyer application
func (h *IntakeHandler) SubmitBuyer(c *gin.Context) {
	var req buyer.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid application", err)
		return
	}

	result, err := h.intakeService.SubmitBuyer(c.Request.Context(), &req)
	if err != nil {
		respondErr(c, "failed to process application", err)
		return
	}

	response.Success(c, http.StatusCreated, "application received", result)
}

// GetBuyer retrieves a buyer by ID
func (h *IntakeHandler) GetBuyer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid buyer ID", err)
		return
	}

	result, err := h.intakeService.GetBuyer(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "failed to get buyer", err)
		return
	}

	response.Success(c, http.StatusOK, "buyer retrieved", result)
}

// ListBuyers retrieves buyers with filters
func (h *IntakeHandler) ListBuyers(c *gin.Context) {
	var filters buyer.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	buyers, total, err := h.intakeService.ListBuyers(c.Request.Context(), &filters)
	if err != nil {
		respondErr(c, "failed to list buyers", err)
		return
	}

	response.Success(c, http.StatusOK, "buyers retrieved", gin.H{
		"buyers": buyers,
		"total":  total,
	})
}

// GetBuyerStats retrieves intake statistics
func (h *IntakeHandler) GetBuyerStats(c *gin.Context) {
	stats, err := h.intakeService.GetBuyerStats(c.Request.Context())
	if err != nil {
		respondErr(c, "failed to get buyer stats", err)
		return
	}

	response.Success(c, http.StatusOK, "stats retrieved", stats)
}

func respondErr(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, message)
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, message, err)
	case errors.Is(err, xerrors.ErrConflict):
		response.Conflict(c, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, nil)
	}
}
