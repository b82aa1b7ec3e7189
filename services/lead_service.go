package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/estate-crm/models"
	"gorm.io/gorm"
)

// LeadService menangani operasi lead dan reminder di database.
type LeadService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLeadService(db *gorm.DB) *LeadService {
	return &LeadService{db: db, now: time.Now}
}

// FindLeadsWithPendingReminders returns leads with a set, incomplete reminder
// and an assigned owner. Unassigned leads are never returned.
func (s *LeadService) FindLeadsWithPendingReminders(ctx context.Context) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("reminder_date IS NOT NULL").
		Where("reminder_is_completed = ?", false).
		Where("assigned_to IS NOT NULL").
		Order("reminder_date ASC").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("find pending reminders: %w", err)
	}
	return leads, nil
}

// MarkReminderCompleted flips reminder_is_completed once, and only while the
// reminder still has the due time the caller saw. A reminder rescheduled or
// cleared in the meantime is left alone. It reports whether this call
// performed the transition.
func (s *LeadService) MarkReminderCompleted(ctx context.Context, leadID uint, dueAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ? AND reminder_is_completed = ? AND reminder_date = ?", leadID, false, dueAt.UTC()).
		Update("reminder_is_completed", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark reminder completed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreateLead menyimpan lead baru; reminder (jika ada) harus di masa depan.
func (s *LeadService) CreateLead(ctx context.Context, lead *models.Lead) error {
	lead.Name = strings.TrimSpace(lead.Name)
	if lead.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLead)
	}
	if lead.Reminder.Date != nil {
		if !lead.Reminder.Date.After(s.now()) {
			return ErrReminderInPast
		}
		due := lead.Reminder.Date.UTC()
		lead.Reminder.Date = &due
		lead.Reminder.IsCompleted = false
	}
	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

func (s *LeadService) GetLead(ctx context.Context, companyID, leadID uint) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", leadID, companyID).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return &lead, nil
}

// SetReminder mengganti reminder lead. Tanggal di masa lalu ditolak di sini,
// bukan di scan loop.
func (s *LeadService) SetReminder(ctx context.Context, companyID, leadID uint, date time.Time, message string) (*models.Lead, error) {
	if !date.After(s.now()) {
		return nil, ErrReminderInPast
	}
	return s.updateReminder(ctx, companyID, leadID, map[string]interface{}{
		"reminder_date":         date.UTC(),
		"reminder_message":      strings.TrimSpace(message),
		"reminder_is_completed": false,
	})
}

func (s *LeadService) ClearReminder(ctx context.Context, companyID, leadID uint) (*models.Lead, error) {
	return s.updateReminder(ctx, companyID, leadID, map[string]interface{}{
		"reminder_date":         nil,
		"reminder_message":      "",
		"reminder_is_completed": false,
	})
}

// CompleteReminder adalah jalur eksplisit (aksi user) untuk menyelesaikan reminder.
func (s *LeadService) CompleteReminder(ctx context.Context, companyID, leadID uint) (*models.Lead, error) {
	return s.updateReminder(ctx, companyID, leadID, map[string]interface{}{
		"reminder_is_completed": true,
	})
}

func (s *LeadService) updateReminder(ctx context.Context, companyID, leadID uint, fields map[string]interface{}) (*models.Lead, error) {
	lead, err := s.GetLead(ctx, companyID, leadID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(lead).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return s.GetLead(ctx, companyID, leadID)
}
