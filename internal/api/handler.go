package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"medtrack-service/internal/insights"
	"medtrack-service/internal/service"
	"medtrack-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	insightService *service.InsightService
}

// NewHandler creates a new HTTP handler
func NewHandler(insightService *service.InsightService) *Handler {
	return &Handler{
		insightService: insightService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users/:external_user_id/sync", h.syncUser)
		v1.GET("/users/:external_user_id/snapshot", h.getSnapshot)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// syncUser refreshes a user's transactions from the configured source
func (h *Handler) syncUser(c *gin.Context) {
	var req service.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}
	req.ExternalUserID = c.Param("external_user_id")

	resp, err := h.insightService.Sync(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Sync already in progress for this user",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Sync failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getSnapshot returns the insight snapshot for a user's cached history
func (h *Handler) getSnapshot(c *gin.Context) {
	opts := insights.SnapshotOptions{
		PriceSKU: c.Query("price_sku"),
	}

	snapshot, err := h.insightService.Snapshot(c.Request.Context(), c.Param("external_user_id"), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to generate snapshot",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
