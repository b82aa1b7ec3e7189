package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReminderInterval struct {
	Hours float64 `json:"hours"`
	Label string  `json:"label"`
}

// ReminderTimeline adalah override per-user untuk ladder default.
// Enabled=false berarti pakai ladder sistem.
type ReminderTimeline struct {
	Enabled   bool               `json:"enabled"`
	Intervals []ReminderInterval `json:"intervals"`
}

// UsesCustomLadder reports whether the timeline overrides the system ladder.
func (t ReminderTimeline) UsesCustomLadder() bool {
	return t.Enabled && len(t.Intervals) > 0
}

type NotificationSettings struct {
	ReminderTimeline datatypes.JSONType[ReminderTimeline] `json:"reminder_timeline"`
	EmailReminders   bool                                 `gorm:"not null" json:"email_reminders"`
}

type User struct {
	ID                   uint                 `gorm:"primaryKey" json:"id"`
	CompanyID            uint                 `gorm:"not null;index" json:"company_id"`
	Name                 string               `gorm:"type:varchar(255);not null" json:"name"`
	Email                string               `gorm:"type:varchar(255);unique;not null" json:"email"`
	Password             string               `gorm:"type:varchar(255);not null" json:"-"`
	Role                 string               `gorm:"type:varchar(50);not null" json:"role"`
	NotificationSettings NotificationSettings `gorm:"embedded;embeddedPrefix:notify_" json:"notification_settings"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func (u *User) ReminderTimeline() ReminderTimeline {
	return u.NotificationSettings.ReminderTimeline.Data()
}
