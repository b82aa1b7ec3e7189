package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/yeremiapane/estate-crm/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxTimelineIntervals = 10
	maxIntervalHours     = 720
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// CompanyMemberIDs returns the subset of ids that belong to companyID.
func (s *UserService) CompanyMemberIDs(ctx context.Context, companyID uint, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var members []uint
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ? AND company_id = ?", ids, companyID).
		Pluck("id", &members).Error
	if err != nil {
		return nil, fmt.Errorf("company members: %w", err)
	}
	return members, nil
}

// GetReminderTimeline returns the user's own ladder settings (possibly the
// disabled sentinel). It does not substitute the default ladder.
func (s *UserService) GetReminderTimeline(ctx context.Context, userID uint) (models.ReminderTimeline, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.ReminderTimeline{}, err
	}
	return user.ReminderTimeline(), nil
}

type NotificationSettingsUpdate struct {
	ReminderTimeline *models.ReminderTimeline `json:"reminder_timeline"`
	EmailReminders   *bool                    `json:"email_reminders"`
}

func (s *UserService) UpdateNotificationSettings(ctx context.Context, userID uint, in NotificationSettingsUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.ReminderTimeline != nil {
		timeline, err := NormalizeTimeline(*in.ReminderTimeline)
		if err != nil {
			return nil, err
		}
		user.NotificationSettings.ReminderTimeline = datatypes.NewJSONType(timeline)
	}
	if in.EmailReminders != nil {
		user.NotificationSettings.EmailReminders = *in.EmailReminders
	}

	err = s.db.WithContext(ctx).Model(user).Select(
		"notify_reminder_timeline", "notify_email_reminders",
	).Updates(user).Error
	if err != nil {
		return nil, fmt.Errorf("update notification settings: %w", err)
	}
	return user, nil
}

// NormalizeTimeline validates a custom ladder, fills missing labels and sorts
// it by hours descending.
func NormalizeTimeline(t models.ReminderTimeline) (models.ReminderTimeline, error) {
	if len(t.Intervals) > maxTimelineIntervals {
		return t, fmt.Errorf("%w: at most %d intervals", ErrInvalidTimeline, maxTimelineIntervals)
	}
	if t.Enabled && len(t.Intervals) == 0 {
		return t, fmt.Errorf("%w: enabled timeline needs at least one interval", ErrInvalidTimeline)
	}

	seen := make(map[float64]bool, len(t.Intervals))
	out := models.ReminderTimeline{Enabled: t.Enabled, Intervals: make([]models.ReminderInterval, 0, len(t.Intervals))}
	for _, iv := range t.Intervals {
		if math.IsNaN(iv.Hours) || iv.Hours <= 0 || iv.Hours > maxIntervalHours {
			return t, fmt.Errorf("%w: hours must be in (0, %d], got %v", ErrInvalidTimeline, maxIntervalHours, iv.Hours)
		}
		if seen[iv.Hours] {
			return t, fmt.Errorf("%w: duplicate interval %v", ErrInvalidTimeline, iv.Hours)
		}
		seen[iv.Hours] = true

		iv.Label = strings.TrimSpace(iv.Label)
		if iv.Label == "" {
			iv.Label = FormatHours(iv.Hours)
		}
		out.Intervals = append(out.Intervals, iv)
	}
	out.Intervals = sortLadder(out.Intervals)
	return out, nil
}
