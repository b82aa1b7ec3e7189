package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/estate-crm/models"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository menyimpan notifikasi in-app. Setelah dibuat, hanya
// flag read/archive yang boleh berubah.
type NotificationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	// sqlite membandingkan waktu sebagai string, simpan selalu dalam UTC
	n.ExpiresAt = n.ExpiresAt.UTC()
	n.CreatedAt = n.CreatedAt.UTC()
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

type NotificationFilter struct {
	IncludeArchived bool
	UnreadOnly      bool
	Limit           int
	Offset          int
}

// ListForUser returns the user's unexpired notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint, f NotificationFilter) ([]models.Notification, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND expires_at > ?", userID, r.now())
	if !f.IncludeArchived {
		q = q.Where("is_archived = ?", false)
	}
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	// Count dan Find memakai kondisi yang sama
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []models.Notification
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(f.Offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ? AND is_archived = ? AND expires_at > ?", userID, false, false, r.now()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return r.updateFlags(ctx, userID, notificationID, map[string]interface{}{
		"is_read": true,
		"read_at": r.now(),
	})
}

func (r *NotificationRepository) Archive(ctx context.Context, userID, notificationID uint) error {
	return r.updateFlags(ctx, userID, notificationID, map[string]interface{}{
		"is_archived": true,
	})
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	now := r.now()
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ? AND expires_at > ?", userID, false, now).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeExpired menghapus notifikasi yang sudah lewat expires_at.
func (r *NotificationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *NotificationRepository) updateFlags(ctx context.Context, userID, notificationID uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update notification: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// mysql melaporkan 0 bila nilai tidak berubah, jadi cek keberadaan baris
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
