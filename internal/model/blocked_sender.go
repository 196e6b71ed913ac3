package model

import "time"

// BlockedSender is a sender address the user has unsubscribed from. Mail from
// these addresses is archived and labeled instead of entering the pipeline.
type BlockedSender struct {
	ID     uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID uint   `json:"user_id" gorm:"not null;uniqueIndex:ux_user_sender,priority:1"`
	Email  string `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:ux_user_sender,priority:2"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for BlockedSender
func (BlockedSender) TableName() string {
	return "blocked_senders"
}
