package domain

import "time"

// ApiKey stores one upstream credential, encrypted at rest. The plaintext is
// never persisted; only the AEAD ciphertext is.
type ApiKey struct {
	ID         int64      `gorm:"primaryKey"`
	Name       string     `gorm:"type:text;not null;uniqueIndex:ux_api_keys_name"`
	Ciphertext string     `gorm:"type:text;not null"`
	IsActive   bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
}

// TableName sets the database table name.
func (ApiKey) TableName() string { return "api_keys" }
