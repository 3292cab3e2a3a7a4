// internal/app/router.go
package app

import (
	intakeHandler "pasturelink-service/internal/handlers/intake"
	rancherHandler "pasturelink-service/internal/handlers/rancher"
	referralHandler "pasturelink-service/internal/handlers/referral"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	IntakeHandler   *intakeHandler.IntakeHandler
	ReferralHandler *referralHandler.ReferralHandler
	RancherHandler  *rancherHandler.RancherHandler
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health & Metrics ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== Intake ====================
	intake := api.Group("/intake")
	{
		intake.POST("/buyers", h.IntakeHandler.SubmitBuyer)
		intake.POST("/ranchers", h.RancherHandler.SubmitApplication)
	}

	// ==================== Buyers ====================
	buyers := api.Group("/buyers")
	{
		buyers.GET("", h.IntakeHandler.ListBuyers)
		buyers.GET("/stats", h.IntakeHandler.GetBuyerStats)
		buyers.GET("/:id", h.IntakeHandler.GetBuyer)
	}

	// ==================== Referrals ====================
	referrals := api.Group("/referrals")
	{
		referrals.GET("", h.ReferralHandler.List)
		referrals.GET("/stats", h.ReferralHandler.GetStats)
		referrals.GET("/:id", h.ReferralHandler.Get)
		referrals.POST("/:id/approve", h.ReferralHandler.Approve)
		referrals.POST("/:id/reassign", h.ReferralHandler.Reassign)
		referrals.POST("/:id/reject", h.ReferralHandler.Reject)
		referrals.POST("/:id/rematch", h.ReferralHandler.Rematch)
		referrals.PATCH("/:id/status", h.ReferralHandler.UpdateStatus)
		referrals.POST("/:id/commission/paid", h.ReferralHandler.MarkCommissionPaid)
	}

	// ==================== Ranchers ====================
	ranchers := api.Group("/ranchers")
	{
		ranchers.GET("", h.RancherHandler.List)
		ranchers.GET("/:id", h.RancherHandler.Get)
		ranchers.PATCH("/:id/status", h.RancherHandler.UpdateStatus)
		ranchers.PATCH("/:id/onboarding", h.RancherHandler.UpdateOnboarding)
		ranchers.PATCH("/:id/capacity", h.RancherHandler.UpdateCapacity)
	}

	logger.Info("router configured")
}
