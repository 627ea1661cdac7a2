package handler

import (
	"errors"
	"net/http"

	"astroline/internal/model"
	"astroline/internal/service"
	"astroline/pkg/logger"
	queue "astroline/pkg/queue/asynq"
	"astroline/pkg/routing"

	"github.com/gin-gonic/gin"
)

// RoutingHandler handles consultation assignment and release requests
type RoutingHandler struct {
	routingService *service.RoutingService
	queueManager   *queue.Manager
}

// NewRoutingHandler creates a new routing handler
func NewRoutingHandler(routingService *service.RoutingService, queueManager *queue.Manager) *RoutingHandler {
	return &RoutingHandler{
		routingService: routingService,
		queueManager:   queueManager,
	}
}

// Assign routes a consultation request to a handling astrologer
// @Summary Assign a consultation
// @Description Resolve overrides, score candidates and reserve a capacity slot
// @Tags routing
// @Accept json
// @Produce json
// @Success 200 {object} model.RoutingDecision
// @Router /v1/assign [post]
func (h *RoutingHandler) Assign(c *gin.Context) {
	var req model.ConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	decision, err := h.routingService.Assign(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, routing.ErrNoAvailableAstrologer) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no available astrologer"})
			return
		}
		logger.ErrorCtx(c.Request.Context(), "assignment failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, decision)
}

type releaseRequest struct {
	AstrologerID        string                    `json:"astrologer_id" binding:"required"`
	Outcome             model.ConsultationOutcome `json:"outcome" binding:"required"`
	ResponseTimeSeconds float64                   `json:"response_time_seconds"`
}

// Release returns a capacity slot and records the consultation outcome
// @Summary Release a consultation slot
// @Tags routing
// @Accept json
// @Produce json
// @Router /v1/release [post]
func (h *RoutingHandler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.routingService.Release(c.Request.Context(), req.AstrologerID, req.Outcome, req.ResponseTimeSeconds); err != nil {
		if errors.Is(err, routing.ErrInvalidOutcome) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "outcome must be COMPLETED or ABANDONED"})
			return
		}
		logger.ErrorCtx(c.Request.Context(), "release failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

// ConsultationEnded accepts a completion event from the consultation
// lifecycle service and enqueues it for asynchronous release.
// @Summary Enqueue a consultation-ended event
// @Tags routing
// @Accept json
// @Produce json
// @Router /v1/events/consultation-ended [post]
func (h *RoutingHandler) ConsultationEnded(c *gin.Context) {
	var event model.CompletionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if event.AstrologerID == "" || !event.Outcome.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "astrologer_id and a valid outcome are required"})
		return
	}

	if h.queueManager == nil {
		// No queue configured: release synchronously.
		if err := h.routingService.Release(c.Request.Context(), event.AstrologerID, event.Outcome, event.ResponseTimeSeconds); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "released"})
		return
	}

	if err := h.queueManager.EnqueueCompletion(c.Request.Context(), &event); err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to enqueue completion event: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "enqueued"})
}
