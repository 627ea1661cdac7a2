package handler

import (
	"errors"
	"net/http"
	"strconv"

	"astroline/internal/model"
	"astroline/internal/service"
	"astroline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RuleHandler handles override and smart rule management requests
type RuleHandler struct {
	ruleService *service.RuleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(ruleService *service.RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// CreateOverrideRule creates an override rule
// @Summary Create an override rule
// @Tags rules
// @Accept json
// @Produce json
// @Router /api/v1/override-rules [post]
func (h *RuleHandler) CreateOverrideRule(c *gin.Context) {
	var rule model.OverrideRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	created, err := h.ruleService.CreateOverrideRule(c.Request.Context(), &rule)
	if err != nil {
		h.writeRuleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListOverrideRules lists all override rules
// @Summary List override rules
// @Tags rules
// @Produce json
// @Router /api/v1/override-rules [get]
func (h *RuleHandler) ListOverrideRules(c *gin.Context) {
	rules, err := h.ruleService.ListOverrideRules(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list override rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "total": len(rules)})
}

// GetOverrideRule returns one override rule
// @Summary Get an override rule
// @Tags rules
// @Produce json
// @Router /api/v1/override-rules/{id} [get]
func (h *RuleHandler) GetOverrideRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	rule, err := h.ruleService.GetOverrideRule(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateOverrideRule updates an override rule
// @Summary Update an override rule
// @Tags rules
// @Accept json
// @Produce json
// @Router /api/v1/override-rules/{id} [put]
func (h *RuleHandler) UpdateOverrideRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	var rule model.OverrideRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	rule.ID = id

	updated, err := h.ruleService.UpdateOverrideRule(c.Request.Context(), &rule)
	if err != nil {
		h.writeRuleError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteOverrideRule removes an override rule
// @Summary Delete an override rule
// @Tags rules
// @Router /api/v1/override-rules/{id} [delete]
func (h *RuleHandler) DeleteOverrideRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	if err := h.ruleService.DeleteOverrideRule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetOverrideRuleActive toggles an override rule
// @Summary Enable or disable an override rule
// @Tags rules
// @Accept json
// @Router /api/v1/override-rules/{id}/active [patch]
func (h *RuleHandler) SetOverrideRuleActive(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	if err := h.ruleService.SetOverrideRuleActive(c.Request.Context(), id, *req.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateSmartRule creates a smart rule
// @Summary Create a smart rule
// @Tags rules
// @Accept json
// @Produce json
// @Router /api/v1/smart-rules [post]
func (h *RuleHandler) CreateSmartRule(c *gin.Context) {
	var rule model.SmartRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	created, err := h.ruleService.CreateSmartRule(c.Request.Context(), &rule)
	if err != nil {
		h.writeRuleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListSmartRules lists all smart rules
// @Summary List smart rules
// @Tags rules
// @Produce json
// @Router /api/v1/smart-rules [get]
func (h *RuleHandler) ListSmartRules(c *gin.Context) {
	rules, err := h.ruleService.ListSmartRules(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list smart rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "total": len(rules)})
}

// GetSmartRule returns one smart rule
// @Summary Get a smart rule
// @Tags rules
// @Produce json
// @Router /api/v1/smart-rules/{id} [get]
func (h *RuleHandler) GetSmartRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	rule, err := h.ruleService.GetSmartRule(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateSmartRule updates a smart rule
// @Summary Update a smart rule
// @Tags rules
// @Accept json
// @Produce json
// @Router /api/v1/smart-rules/{id} [put]
func (h *RuleHandler) UpdateSmartRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	var rule model.SmartRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	rule.ID = id

	updated, err := h.ruleService.UpdateSmartRule(c.Request.Context(), &rule)
	if err != nil {
		h.writeRuleError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteSmartRule removes a smart rule
// @Summary Delete a smart rule
// @Tags rules
// @Router /api/v1/smart-rules/{id} [delete]
func (h *RuleHandler) DeleteSmartRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	if err := h.ruleService.DeleteSmartRule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// SetSmartRuleActive toggles a smart rule
// @Summary Enable or disable a smart rule
// @Tags rules
// @Accept json
// @Router /api/v1/smart-rules/{id}/active [patch]
func (h *RuleHandler) SetSmartRuleActive(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	if err := h.ruleService.SetSmartRuleActive(c.Request.Context(), id, *req.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *RuleHandler) ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return 0, false
	}
	return id, true
}

func (h *RuleHandler) writeRuleError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidRule) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.ErrorCtx(c.Request.Context(), "rule operation failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
