package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/metrics"
	"github.com/yeremiapane/estate-crm/utils"
)

type ExpiredNotificationPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// NotificationJanitor menghapus notifikasi yang sudah kadaluarsa secara berkala,
// pengganti TTL index yang tidak ada di mysql/sqlite.
type NotificationJanitor struct {
	purger   ExpiredNotificationPurger
	interval time.Duration
	now      func() time.Time
	StopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	log      *logrus.Entry
}

func NewNotificationJanitor(purger ExpiredNotificationPurger, interval time.Duration) *NotificationJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &NotificationJanitor{
		purger:   purger,
		interval: interval,
		now:      time.Now,
		StopChan: make(chan struct{}),
		log:      utils.Component("notification_janitor"),
	}
}

func (j *NotificationJanitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.PurgeOnce(ctx)
			case <-j.StopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *NotificationJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.StopChan) })
	j.wg.Wait()
}

// PurgeOnce deletes expired notifications and returns how many were removed.
func (j *NotificationJanitor) PurgeOnce(ctx context.Context) int64 {
	n, err := j.purger.PurgeExpired(ctx, j.now())
	if err != nil {
		j.log.WithError(err).Error("purge expired notifications failed")
		return 0
	}
	if n > 0 {
		metrics.NotificationsPurged.Add(float64(n))
		j.log.WithField("count", n).Info("expired notifications purged")
	}
	return n
}
