package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationTypeLeadReminder = "lead_reminder"

	NotificationPlatformCRM = "crm"

	NotificationPriorityLow    = "low"
	NotificationPriorityMedium = "medium"
	NotificationPriorityHigh   = "high"
)

type Notification struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CompanyID  uint              `gorm:"not null;index" json:"company_id"`
	UserID     uint              `gorm:"not null;index" json:"user_id"`
	Type       string            `gorm:"type:varchar(50);not null" json:"type"`
	Title      string            `gorm:"type:varchar(255);not null" json:"title"`
	Message    string            `gorm:"type:text;not null" json:"message"`
	Platform   string            `gorm:"type:varchar(50);not null" json:"platform"`
	Priority   string            `gorm:"type:varchar(20);not null" json:"priority"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	IsRead     bool              `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt     *time.Time        `json:"read_at"`
	IsArchived bool              `gorm:"not null;default:false" json:"is_archived"`
	ExpiresAt  time.Time         `gorm:"not null;index" json:"expires_at"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}
