package models

import "time"

// Reminder adalah satu jadwal pengingat per lead (bukan list).
type Reminder struct {
	Date        *time.Time `json:"date"`
	Message     string     `gorm:"type:text" json:"message"`
	IsCompleted bool       `gorm:"not null;default:false;index" json:"is_completed"`
}

type Lead struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index" json:"company_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255)" json:"email"`
	Phone        string    `gorm:"type:varchar(50)" json:"phone"`
	Status       string    `gorm:"type:varchar(50);not null;default:'new'" json:"status"`
	AssignedTo   *uint     `gorm:"index" json:"assigned_to"`
	AssignedUser *User     `gorm:"foreignKey:AssignedTo;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"assigned_user,omitempty"`
	Reminder     Reminder  `gorm:"embedded;embeddedPrefix:reminder_" json:"reminder"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPendingReminder mirrors the scan predicate used by the lead store.
func (l *Lead) HasPendingReminder() bool {
	return l.Reminder.Date != nil && !l.Reminder.IsCompleted && l.AssignedTo != nil
}
