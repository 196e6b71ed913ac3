package model

import (
	"time"
)

// ColdEmailSetting selects the blocking strategy applied to messages
// classified as cold outreach.
type ColdEmailSetting string

const (
	ColdEmailDisabled            ColdEmailSetting = "DISABLED"
	ColdEmailLabel               ColdEmailSetting = "LABEL"
	ColdEmailArchiveAndLabel     ColdEmailSetting = "ARCHIVE_AND_LABEL"
	ColdEmailArchiveReadAndLabel ColdEmailSetting = "ARCHIVE_AND_READ_AND_LABEL"
)

// User owns a connected mailbox and its automation settings.
// LastSyncedHistoryID is the per-user change cursor; it only ever moves
// forward and is advanced by the webhook orchestrator.
type User struct {
	ID                  uint             `json:"id" gorm:"primaryKey;autoIncrement"`
	Email               string           `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	About               string           `json:"about" gorm:"type:text"`
	AIProvider          string           `json:"ai_provider" gorm:"type:varchar(100)"`
	AIModel             string           `json:"ai_model" gorm:"type:varchar(100)"`
	AIAPIKey            string           `json:"-" gorm:"type:varchar(255)"`
	ColdEmailBlocker    ColdEmailSetting `json:"cold_email_blocker" gorm:"type:varchar(50);default:'DISABLED'"`
	ColdEmailPrompt     string           `json:"cold_email_prompt" gorm:"type:text"`
	LastSyncedHistoryID uint64           `json:"last_synced_history_id" gorm:"default:0"`

	// Entitlement snapshot.
	PremiumRenewsAt        *time.Time `json:"premium_renews_at"`
	AIAutomationAccess     bool       `json:"ai_automation_access" gorm:"default:false"`
	ColdEmailBlockerAccess bool       `json:"cold_email_blocker_access" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// PremiumActive reports whether the premium subscription covers now.
func (u *User) PremiumActive(now time.Time) bool {
	return u.PremiumRenewsAt != nil && u.PremiumRenewsAt.After(now)
}

// HasAIAccess reports whether automation rules may call the AI capability:
// either the plan grants it or the user brought their own API key.
func (u *User) HasAIAccess() bool {
	return u.AIAutomationAccess || u.AIAPIKey != ""
}

// HasColdEmailAccess reports whether the cold-email blocker may run.
func (u *User) HasColdEmailAccess() bool {
	return u.ColdEmailBlockerAccess || u.AIAPIKey != ""
}

// ShouldBlockColdEmails reports whether a blocking strategy is configured.
func (u *User) ShouldBlockColdEmails() bool {
	return u.ColdEmailBlocker != "" && u.ColdEmailBlocker != ColdEmailDisabled
}
