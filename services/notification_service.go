package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/metrics"
	"github.com/yeremiapane/estate-crm/models"
	"github.com/yeremiapane/estate-crm/utils"
	"gorm.io/datatypes"
)

// EventReminderNotification is the real-time event name for reminder pushes.
const EventReminderNotification = "reminder_notification"

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Pusher mengirim event ke sesi real-time user. Mengembalikan false bila user offline.
type Pusher interface {
	PushToUser(userID uint, event string, data interface{}) (bool, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html, text string) error
}

// ReminderEvent is one fired reminder trigger for a lead and its owner.
type ReminderEvent struct {
	Lead      models.Lead
	User      models.User
	Interval  models.ReminderInterval
	HoursLeft float64
	FiredAt   time.Time
}

// DeliveryReport describes what each channel did. Channels are independent;
// a failure in one never prevents the others.
type DeliveryReport struct {
	Notification *models.Notification
	Persisted    bool
	Pushed       bool
	Emailed      bool
	PersistErr   error
	PushErr      error
	EmailErr     error
}

type NotificationServiceConfig struct {
	AppName         string
	TTL             time.Duration
	DeliveryTimeout time.Duration
}

// NotificationService melakukan fan-out notifikasi: simpan, push, email.
type NotificationService struct {
	store  NotificationStore
	pusher Pusher
	email  EmailSender
	cfg    NotificationServiceConfig
	log    *logrus.Entry
}

func NewNotificationService(store NotificationStore, pusher Pusher, email EmailSender, cfg NotificationServiceConfig) *NotificationService {
	if email == nil {
		email = NoopEmailSender{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.AppName == "" {
		cfg.AppName = "Estate CRM"
	}
	return &NotificationService{
		store:  store,
		pusher: pusher,
		email:  email,
		cfg:    cfg,
		log:    utils.Component("notification"),
	}
}

// DeliverReminder persists, pushes and emails a reminder notification. No
// channel is retried; failures are logged and counted.
func (s *NotificationService) DeliverReminder(ctx context.Context, ev ReminderEvent) DeliveryReport {
	n := s.buildReminderNotification(ev)
	report := DeliveryReport{Notification: n}
	log := s.log.WithFields(logrus.Fields{
		"lead_id":        ev.Lead.ID,
		"user_id":        ev.User.ID,
		"interval_hours": ev.Interval.Hours,
	})

	if err := s.persist(ctx, n); err != nil {
		report.PersistErr = err
		metrics.RecordDelivery(metrics.ChannelPersist, metrics.OutcomeFailure)
		log.WithError(err).Error("persist reminder notification failed")
	} else {
		report.Persisted = true
		metrics.RecordDelivery(metrics.ChannelPersist, metrics.OutcomeSuccess)
	}

	pushed, err := s.push(ev.User.ID, n)
	switch {
	case err != nil:
		report.PushErr = err
		metrics.RecordDelivery(metrics.ChannelPush, metrics.OutcomeFailure)
		log.WithError(err).Warn("push reminder notification failed")
	case pushed:
		report.Pushed = true
		metrics.RecordDelivery(metrics.ChannelPush, metrics.OutcomeSuccess)
	default:
		metrics.RecordDelivery(metrics.ChannelPush, metrics.OutcomeSkipped)
	}

	if err := s.sendEmail(ctx, ev, n); err != nil {
		if isEmailSkip(err) {
			metrics.RecordDelivery(metrics.ChannelEmail, metrics.OutcomeSkipped)
		} else {
			report.EmailErr = err
			metrics.RecordDelivery(metrics.ChannelEmail, metrics.OutcomeFailure)
			log.WithError(err).Warn("send reminder email failed")
		}
	} else {
		report.Emailed = true
		metrics.RecordDelivery(metrics.ChannelEmail, metrics.OutcomeSuccess)
	}

	log.WithFields(logrus.Fields{
		"persisted": report.Persisted,
		"pushed":    report.Pushed,
		"emailed":   report.Emailed,
	}).Info("reminder notification delivered")
	return report
}

// isEmailSkip reports whether the email channel was not attempted at all.
func isEmailSkip(err error) bool {
	return errors.Is(err, ErrEmailDisabled) ||
		errors.Is(err, ErrEmailOptedOut) ||
		errors.Is(err, ErrNoEmailRecipient)
}

func (s *NotificationService) persist(ctx context.Context, n *models.Notification) error {
	if s.store == nil {
		return errors.New("notification store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()
	return s.store.CreateNotification(ctx, n)
}

func (s *NotificationService) push(userID uint, n *models.Notification) (bool, error) {
	if s.pusher == nil {
		return false, nil
	}
	return s.pusher.PushToUser(userID, EventReminderNotification, n)
}

func (s *NotificationService) sendEmail(ctx context.Context, ev ReminderEvent, n *models.Notification) error {
	if !ev.User.NotificationSettings.EmailReminders {
		return ErrEmailOptedOut
	}
	if ev.User.Email == "" {
		return ErrNoEmailRecipient
	}
	html, text, err := renderReminderEmail(reminderEmailData{
		AppName:  s.cfg.AppName,
		UserName: ev.User.Name,
		LeadName: ev.Lead.Name,
		Message:  ev.Lead.Reminder.Message,
		DueIn:    FormatHours(ev.HoursLeft),
		DueAt:    reminderDueString(ev.Lead),
		Interval: ev.Interval.Label,
		Title:    n.Title,
	})
	if err != nil {
		return fmt.Errorf("render reminder email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()
	return s.email.SendEmail(ctx, ev.User.Email, n.Title, html, text)
}

func (s *NotificationService) buildReminderNotification(ev ReminderEvent) *models.Notification {
	firedAt := ev.FiredAt
	if firedAt.IsZero() {
		firedAt = time.Now()
	}
	dueIn := FormatHours(ev.HoursLeft)

	message := fmt.Sprintf("Reminder for %s is due in %s", ev.Lead.Name, dueIn)
	if ev.Lead.Reminder.Message != "" {
		message = fmt.Sprintf("%s: %s", message, ev.Lead.Reminder.Message)
	}

	return &models.Notification{
		CompanyID: ev.Lead.CompanyID,
		UserID:    ev.User.ID,
		Type:      models.NotificationTypeLeadReminder,
		Title:     fmt.Sprintf("Reminder: %s (%s)", ev.Lead.Name, ev.Interval.Label),
		Message:   message,
		Platform:  models.NotificationPlatformCRM,
		Priority:  reminderPriority(ev.HoursLeft),
		Metadata: datatypes.JSONMap{
			"lead_id":        ev.Lead.ID,
			"lead_name":      ev.Lead.Name,
			"interval_hours": ev.Interval.Hours,
			"interval_label": ev.Interval.Label,
			"hours_left":     ev.HoursLeft,
			"reminder_date":  reminderDueString(ev.Lead),
		},
		ExpiresAt: firedAt.Add(s.cfg.TTL),
		CreatedAt: firedAt,
	}
}

func reminderPriority(hoursLeft float64) string {
	switch {
	case hoursLeft <= 1:
		return models.NotificationPriorityHigh
	case hoursLeft <= 24:
		return models.NotificationPriorityMedium
	default:
		return models.NotificationPriorityLow
	}
}

func reminderDueString(lead models.Lead) string {
	if lead.Reminder.Date == nil {
		return ""
	}
	return lead.Reminder.Date.UTC().Format(time.RFC3339)
}
