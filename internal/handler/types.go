package handler

import (
	"time"

	"github.com/InboxSlash/inbox-slash/internal/model"
)

// PushEnvelope is the Pub/Sub push wrapper around a mailbox notification.
type PushEnvelope struct {
	Message struct {
		Data        string    `json:"data"`
		MessageID   string    `json:"messageId"`
		PublishTime time.Time `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// ActionRequest is one action of a rule create request.
type ActionRequest struct {
	Type     model.ActionType `json:"type" binding:"required"`
	Position int              `json:"position"`
	Label    string           `json:"label"`
	To       string           `json:"to"`
	Subject  string           `json:"subject"`
	Content  string           `json:"content"`
}

// RuleRequest represents the request structure for creating rules
type RuleRequest struct {
	Name         string          `json:"name" binding:"required"`
	Instructions string          `json:"instructions" binding:"required"`
	Enabled      *bool           `json:"enabled"`
	Actions      []ActionRequest `json:"actions" binding:"required,min=1"`
}

// RuleResponse represents the response structure for rules
type RuleResponse struct {
	ID           uint           `json:"id"`
	Name         string         `json:"name"`
	Instructions string         `json:"instructions"`
	Enabled      bool           `json:"enabled"`
	Actions      []model.Action `json:"actions"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ExecutionResponse represents one dedup-ledger record
type ExecutionResponse struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	MessageID string        `json:"message_id"`
	RuleID    *uint         `json:"rule_id"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Rule      *RuleResponse `json:"rule,omitempty"`
}

// BlockedSenderRequest represents the request structure for blocking a sender
type BlockedSenderRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
