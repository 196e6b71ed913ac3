package model

import "time"

// ProviderGoogle is the only mail provider currently connected.
const ProviderGoogle = "google"

// Account holds the OAuth credential for a connected mailbox, 1:1 with the
// provider account. Tokens are read-only to the pipeline; the provider client
// refreshes expired access tokens itself.
type Account struct {
	ID                uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID            uint   `json:"user_id" gorm:"not null;index"`
	Provider          string `json:"provider" gorm:"type:varchar(50);not null;default:'google'"`
	ProviderAccountID string `json:"provider_account_id" gorm:"type:varchar(255);not null"`
	AccessToken       string `json:"-" gorm:"type:text"`
	RefreshToken      string `json:"-" gorm:"type:text"`
	ExpiresAt         int64  `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
