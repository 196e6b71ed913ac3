package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetBlockedSenders returns the user's unsubscribe block list
func (h *Handlers) GetBlockedSenders(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	senders, err := h.repo.BlockedSenders(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch blocked senders",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, senders)
}

// BlockSender adds a sender to the user's block list
func (h *Handlers) BlockSender(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req BlockedSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.repo.BlockSender(userID, req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to block sender",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.Status(http.StatusCreated)
}
