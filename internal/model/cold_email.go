package model

import "time"

// ColdEmail records a sender classified as cold outreach, one row per
// (user, sender). Later mail from the sender keeps the existing row.
type ColdEmail struct {
	ID        string `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    uint   `json:"user_id" gorm:"not null;uniqueIndex:ux_user_from,priority:1"`
	FromEmail string `json:"from_email" gorm:"type:varchar(255);not null;uniqueIndex:ux_user_from,priority:2"`
	MessageID string `json:"message_id" gorm:"type:varchar(64)"`
	ThreadID  string `json:"thread_id" gorm:"type:varchar(64)"`
	Reason    string `json:"reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ColdEmail
func (ColdEmail) TableName() string {
	return "cold_emails"
}
