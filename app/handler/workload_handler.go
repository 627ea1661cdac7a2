package handler

import (
	"net/http"
	"strconv"
	"time"

	"astroline/internal/service"
	"astroline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WorkloadHandler handles workload dashboard and operator control requests
type WorkloadHandler struct {
	workloadService *service.WorkloadService
	routingService  *service.RoutingService
}

// NewWorkloadHandler creates a new workload handler
func NewWorkloadHandler(workloadService *service.WorkloadService, routingService *service.RoutingService) *WorkloadHandler {
	return &WorkloadHandler{
		workloadService: workloadService,
		routingService:  routingService,
	}
}

// ListWorkloads returns the current workload of every astrologer
// @Summary List astrologer workloads
// @Tags workload
// @Produce json
// @Router /api/v1/workloads [get]
func (h *WorkloadHandler) ListWorkloads(c *gin.Context) {
	workloads := h.workloadService.ListWorkloads(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"workloads": workloads, "total": len(workloads)})
}

// GetWorkload returns one astrologer's workload record
// @Summary Get one astrologer workload
// @Tags workload
// @Produce json
// @Router /api/v1/workloads/{id} [get]
func (h *WorkloadHandler) GetWorkload(c *gin.Context) {
	id := c.Param("id")
	w, err := h.workloadService.GetWorkload(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, w)
}

// GetWorkloadHistory returns persisted snapshots for one astrologer
// @Summary Get workload history
// @Tags workload
// @Produce json
// @Param hours query int false "Lookback window in hours (default 24)"
// @Router /api/v1/workloads/{id}/history [get]
func (h *WorkloadHandler) GetWorkloadHistory(c *gin.Context) {
	id := c.Param("id")

	hours := 24
	if param := c.Query("hours"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			hours = parsed
			if hours > 24*30 {
				hours = 24 * 30
			}
		}
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	snapshots, err := h.workloadService.WorkloadHistory(c.Request.Context(), id, since)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to load workload history for %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "total": len(snapshots)})
}

type breakRequest struct {
	Minutes int `json:"minutes" binding:"required,gt=0"`
}

// StartBreak puts an astrologer on break
// @Summary Put an astrologer on break
// @Tags workload
// @Accept json
// @Router /api/v1/workloads/{id}/break [post]
func (h *WorkloadHandler) StartBreak(c *gin.Context) {
	id := c.Param("id")
	var req breakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "minutes must be a positive integer"})
		return
	}

	until := time.Now().Add(time.Duration(req.Minutes) * time.Minute)
	if err := h.workloadService.SetBreak(c.Request.Context(), id, &until); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "on_break", "until": until})
}

// EndBreak clears an astrologer's break
// @Summary Clear an astrologer's break
// @Tags workload
// @Router /api/v1/workloads/{id}/break [delete]
func (h *WorkloadHandler) EndBreak(c *gin.Context) {
	id := c.Param("id")
	if err := h.workloadService.SetBreak(c.Request.Context(), id, nil); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "break_cleared"})
}

// TriggerRebalance runs one rebalance pass on demand
// @Summary Trigger a rebalance pass
// @Tags workload
// @Produce json
// @Router /api/v1/rebalance [post]
func (h *WorkloadHandler) TriggerRebalance(c *gin.Context) {
	report, err := h.workloadService.Rebalance(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "manual rebalance failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListRebalances returns recent rebalance pass summaries
// @Summary List recent rebalance passes
// @Tags workload
// @Produce json
// @Router /api/v1/rebalances [get]
func (h *WorkloadHandler) ListRebalances(c *gin.Context) {
	limit := 20
	if param := c.Query("limit"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	events, err := h.workloadService.RecentRebalances(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rebalances": events, "total": len(events)})
}

// GetMetrics returns the current system metrics view
// @Summary Get system metrics
// @Tags workload
// @Produce json
// @Router /api/v1/metrics [get]
func (h *WorkloadHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.routingService.Metrics(c.Request.Context()))
}
