// Package handler exposes the webhook endpoint and a thin management API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/repository"
)

// WebhookProcessor handles one decoded mailbox notification.
type WebhookProcessor interface {
	ProcessNotification(ctx context.Context, n history.Notification) error
}

// Sweeper is the reconciliation sweep's control surface.
type Sweeper interface {
	Start() error
	Stop() error
	IsRunning() bool
	RunOnce()
	NextRun() time.Time
}

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	repo      *repository.Repository
	processor WebhookProcessor
	sweeper   Sweeper
	timeout   time.Duration
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, processor WebhookProcessor, sweeper Sweeper, timeout time.Duration) *Handlers {
	return &Handlers{
		db:        db,
		repo:      repo,
		processor: processor,
		sweeper:   sweeper,
		timeout:   timeout,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/gmail", h.GmailWebhook)

	api := router.Group("/api/v1/users/:user_id")
	{
		api.GET("/rules", h.GetRules)
		api.POST("/rules", h.CreateRule)
		api.GET("/rules/:id", h.GetRule)
		api.DELETE("/rules/:id", h.DeleteRule)
		api.PATCH("/rules/:id/enable", h.EnableRule)
		api.PATCH("/rules/:id/disable", h.DisableRule)

		api.GET("/executions", h.GetExecutions)

		api.GET("/blocked-senders", h.GetBlockedSenders)
		api.POST("/blocked-senders", h.BlockSender)
	}

	sweep := router.Group("/api/v1/sweep")
	{
		sweep.POST("/start", h.StartSweep)
		sweep.POST("/stop", h.StopSweep)
		sweep.POST("/run-once", h.RunSweepOnce)
		sweep.GET("/status", h.SweepStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.sweeper.IsRunning() {
		response.Metrics["sweep"] = "running"
		response.Metrics["next_run"] = h.sweeper.NextRun().Format(time.RFC3339)
	} else {
		response.Metrics["sweep"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
