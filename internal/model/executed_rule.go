package model

import "time"

// Executed-record statuses.
const (
	ExecutedStatusApplied   = "applied"   // a rule matched and its actions ran
	ExecutedStatusNoMatch   = "no_match"  // pipeline ran, no rule matched
	ExecutedStatusColdEmail = "cold_email" // blocked by the cold-email classifier
)

// ExecutedRule is the dedup ledger: one row per (user, thread, message) whose
// decision pipeline has completed. Its presence means "already handled";
// concurrent writers racing on the same key rely on the unique index, with
// the loser treating the conflict as already-handled rather than an error.
// Rows are never deleted by the pipeline.
type ExecutedRule struct {
	ID        string `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    uint   `json:"user_id" gorm:"not null;uniqueIndex:ux_user_thread_message,priority:1"`
	ThreadID  string `json:"thread_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_user_thread_message,priority:2"`
	MessageID string `json:"message_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_user_thread_message,priority:3"`
	RuleID    *uint  `json:"rule_id" gorm:"index"`
	Status    string `json:"status" gorm:"type:varchar(50);not null"`

	CreatedAt time.Time `json:"created_at"`

	Rule *Rule `json:"rule,omitempty" gorm:"foreignKey:RuleID"`
}

// TableName specifies the table name for ExecutedRule
func (ExecutedRule) TableName() string {
	return "executed_rules"
}
