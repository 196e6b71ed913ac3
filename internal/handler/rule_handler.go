package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/InboxSlash/inbox-slash/internal/model"
)

// GetRules returns all of the user's rules
func (h *Handlers) GetRules(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	rules, err := h.repo.Rules(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch rules",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		responses = append(responses, ruleResponse(&rule))
	}

	c.JSON(http.StatusOK, responses)
}

// CreateRule creates a new rule with its ordered actions
func (h *Handlers) CreateRule(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	for _, action := range req.Actions {
		if !validActionType(action.Type) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "Unknown action type " + string(action.Type),
				Code:    http.StatusBadRequest,
			})
			return
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := model.Rule{
		UserID:       userID,
		Name:         req.Name,
		Instructions: req.Instructions,
		Enabled:      enabled,
	}
	for i, action := range req.Actions {
		position := action.Position
		if position == 0 {
			position = i
		}
		rule.Actions = append(rule.Actions, model.Action{
			Type:     action.Type,
			Position: position,
			Label:    action.Label,
			To:       action.To,
			Subject:  action.Subject,
			Content:  action.Content,
		})
	}

	if err := h.repo.CreateRule(&rule); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create rule",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusCreated, ruleResponse(&rule))
}

// GetRule returns a specific rule
func (h *Handlers) GetRule(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	rule, err := h.repo.RuleByID(userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Rule not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch rule",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, ruleResponse(rule))
}

// DeleteRule deletes a rule
func (h *Handlers) DeleteRule(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	if err := h.repo.DeleteRule(userID, id); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete rule",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// EnableRule enables a rule
func (h *Handlers) EnableRule(c *gin.Context) {
	h.setRuleEnabled(c, true)
}

// DisableRule disables a rule
func (h *Handlers) DisableRule(c *gin.Context) {
	h.setRuleEnabled(c, false)
}

func (h *Handlers) setRuleEnabled(c *gin.Context, enabled bool) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	if err := h.repo.SetRuleEnabled(userID, id, enabled); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Rule not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update rule",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handlers) userID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid user ID",
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return uint(id), true
}

func (h *Handlers) ruleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid rule ID",
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return uint(id), true
}

func ruleResponse(rule *model.Rule) RuleResponse {
	return RuleResponse{
		ID:           rule.ID,
		Name:         rule.Name,
		Instructions: rule.Instructions,
		Enabled:      rule.Enabled,
		Actions:      rule.Actions,
		CreatedAt:    rule.CreatedAt,
		UpdatedAt:    rule.UpdatedAt,
	}
}

func validActionType(t model.ActionType) bool {
	switch t {
	case model.ActionLabel, model.ActionArchive, model.ActionForward,
		model.ActionReply, model.ActionDraft, model.ActionMarkSpam:
		return true
	}
	return false
}
