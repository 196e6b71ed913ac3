package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StartSweep starts the reconciliation sweep
func (h *Handlers) StartSweep(c *gin.Context) {
	if err := h.sweeper.Start(); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "sweep_error",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

// StopSweep stops the reconciliation sweep
func (h *Handlers) StopSweep(c *gin.Context) {
	if err := h.sweeper.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "sweep_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// RunSweepOnce triggers one sweep cycle immediately
func (h *Handlers) RunSweepOnce(c *gin.Context) {
	go h.sweeper.RunOnce()
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

// SweepStatus reports whether the sweep is scheduled and when it runs next
func (h *Handlers) SweepStatus(c *gin.Context) {
	status := gin.H{"running": h.sweeper.IsRunning()}
	if h.sweeper.IsRunning() {
		status["next_run"] = h.sweeper.NextRun().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, status)
}
