package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetExecutions returns the user's dedup-ledger records with pagination
func (h *Handlers) GetExecutions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	offset := (page - 1) * limit

	recs, total, err := h.repo.Executions(userID, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch executions",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]ExecutionResponse, 0, len(recs))
	for _, rec := range recs {
		response := ExecutionResponse{
			ID:        rec.ID,
			ThreadID:  rec.ThreadID,
			MessageID: rec.MessageID,
			RuleID:    rec.RuleID,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
		}
		if rec.Rule != nil {
			r := ruleResponse(rec.Rule)
			response.Rule = &r
		}
		responses = append(responses, response)
	}

	c.JSON(http.StatusOK, gin.H{
		"executions": responses,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
