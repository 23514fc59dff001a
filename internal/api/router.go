package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/churchpay-reconciliation/internal/api/handler"
	"github.com/churchpay-reconciliation/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	payoutHandler *handler.PayoutHandler,
) {
	// CorrelationID runs first so both the recovery and request logs carry it.
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		churches := v1.Group("/churches/:churchId/payouts")
		{
			churches.GET("", payoutHandler.List)
			churches.GET("/stats", payoutHandler.Stats)
			churches.GET("/importable", payoutHandler.CheckImportable)
			churches.POST("/import", payoutHandler.Import)
			churches.POST("/reconcile", payoutHandler.ReconcileByRef)
			churches.POST("/reconcile-all", payoutHandler.ReconcileAll)
		}

		v1.POST("/payouts/:id/reconcile", payoutHandler.Reconcile)
		v1.GET("/payouts/:id/runs", payoutHandler.Runs)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
