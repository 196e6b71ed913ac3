package model

import (
	"time"

	"gorm.io/gorm"
)

// ActionType enumerates the side effects a rule can order.
type ActionType string

const (
	ActionLabel    ActionType = "LABEL"
	ActionArchive  ActionType = "ARCHIVE"
	ActionForward  ActionType = "FORWARD"
	ActionReply    ActionType = "REPLY"
	ActionDraft    ActionType = "DRAFT_EMAIL"
	ActionMarkSpam ActionType = "MARK_SPAM"
)

// Rule is a user-owned automation rule. Only enabled rules are visible to
// the pipeline; authoring happens elsewhere.
type Rule struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       uint           `json:"user_id" gorm:"not null;index"`
	Name         string         `json:"name" gorm:"type:varchar(255);not null"`
	Instructions string         `json:"instructions" gorm:"type:text;not null"`
	Enabled      bool           `json:"enabled" gorm:"default:true"`
	Actions      []Action       `json:"actions" gorm:"foreignKey:RuleID"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Rule
func (Rule) TableName() string {
	return "rules"
}

// Action is one ordered step of a rule's action list.
type Action struct {
	ID       uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	RuleID   uint       `json:"rule_id" gorm:"not null;index"`
	Type     ActionType `json:"type" gorm:"type:varchar(50);not null"`
	Position int        `json:"position" gorm:"default:0"`

	// Optional parameters, meaning depends on Type.
	Label   string `json:"label" gorm:"type:varchar(255)"`
	To      string `json:"to" gorm:"type:varchar(255)"`
	Subject string `json:"subject" gorm:"type:varchar(255)"`
	Content string `json:"content" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Action
func (Action) TableName() string {
	return "rule_actions"
}
