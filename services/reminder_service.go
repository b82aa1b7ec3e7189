package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/metrics"
	"github.com/yeremiapane/estate-crm/models"
	"github.com/yeremiapane/estate-crm/utils"
	"golang.org/x/sync/singleflight"
)

// LeadStore is the slice of lead persistence the reminder scan needs.
type LeadStore interface {
	FindLeadsWithPendingReminders(ctx context.Context) ([]models.Lead, error)
	MarkReminderCompleted(ctx context.Context, leadID uint, dueAt time.Time) (bool, error)
}

type UserStore interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

type ReminderNotifier interface {
	DeliverReminder(ctx context.Context, ev ReminderEvent) DeliveryReport
}

var errReminderDateMissing = errors.New("reminder date missing")

// Evaluation error reasons, used as metric label values.
const (
	reasonInvalidReminder = "invalid_reminder"
	reasonMissingUser     = "missing_user"
	reasonStore           = "store"
	reasonPanic           = "panic"
)

type ReminderServiceConfig struct {
	Interval    time.Duration
	EvalTimeout time.Duration
}

// ScanResult merangkum satu kali scan.
type ScanResult struct {
	Candidates int
	Fired      int
	Suppressed int
	Completed  int
	Idle       int
	Failed     int
}

type evalOutcome int

const (
	outcomeIdle evalOutcome = iota
	outcomeFired
	outcomeSuppressed
	outcomeCompleted
)

// ReminderService secara periodik memindai lead dengan reminder aktif dan
// mengirim notifikasi saat threshold ladder terlewati.
type ReminderService struct {
	leads    LeadStore
	users    UserStore
	notifier ReminderNotifier
	dedup    *DedupCache

	interval    time.Duration
	evalTimeout time.Duration
	now         func() time.Time

	group     singleflight.Group
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	log       *logrus.Entry
}

func NewReminderService(leads LeadStore, users UserStore, notifier ReminderNotifier, dedup *DedupCache, cfg ReminderServiceConfig) *ReminderService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 30 * time.Second
	}
	if dedup == nil {
		dedup = NewDedupCache(2 * time.Hour)
	}
	return &ReminderService{
		leads:       leads,
		users:       users,
		notifier:    notifier,
		dedup:       dedup,
		interval:    cfg.Interval,
		evalTimeout: cfg.EvalTimeout,
		now:         time.Now,
		stopChan:    make(chan struct{}),
		log:         utils.Component("reminder"),
	}
}

// Start menjalankan loop scan di goroutine sampai Stop dipanggil atau ctx selesai.
func (s *ReminderService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
		s.log.WithField("interval", s.interval.String()).Info("reminder scheduler started")
	})
}

// Stop stops the timer and waits for the current tick to finish. In-flight
// lead evaluations are not cancelled.
func (s *ReminderService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *ReminderService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// tick tidak boleh dibatalkan di tengah jalan oleh shutdown
	tickCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(tickCtx)
		case <-s.stopChan:
			s.log.Info("reminder scheduler stopping")
			return
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopping")
			return
		}
	}
}

// tick never lets a failure escape, so the next tick always runs.
func (s *ReminderService) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ReminderScansTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			s.log.WithField("panic", r).Error("reminder scan panicked")
		}
	}()

	res, err := s.RunOnce(ctx)
	if err != nil {
		s.log.WithError(err).Error("reminder scan failed")
		return
	}
	if res.Fired > 0 || res.Completed > 0 || res.Failed > 0 {
		s.log.WithFields(logrus.Fields{
			"candidates": res.Candidates,
			"fired":      res.Fired,
			"suppressed": res.Suppressed,
			"completed":  res.Completed,
			"failed":     res.Failed,
		}).Info("reminder scan finished")
	}
}

// RunOnce performs one scan. Concurrent callers share a single scan, so the
// dedup check-and-set is never raced by a second scan in this process.
func (s *ReminderService) RunOnce(ctx context.Context) (ScanResult, error) {
	v, err, _ := s.group.Do("reminder-scan", func() (interface{}, error) {
		return s.scan(ctx)
	})
	res, _ := v.(ScanResult)
	return res, err
}

func (s *ReminderService) scan(ctx context.Context) (ScanResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReminderScanDuration)

	var res ScanResult
	s.dedup.Purge(s.now())

	leads, err := s.leads.FindLeadsWithPendingReminders(ctx)
	if err != nil {
		metrics.ReminderScansTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return res, fmt.Errorf("load leads: %w", err)
	}
	res.Candidates = len(leads)

	for i := range leads {
		switch outcome, err := s.evaluateSafely(ctx, leads[i]); {
		case err != nil:
			res.Failed++
		case outcome == outcomeFired:
			res.Fired++
		case outcome == outcomeSuppressed:
			res.Suppressed++
		case outcome == outcomeCompleted:
			res.Completed++
		default:
			res.Idle++
		}
	}

	metrics.ReminderScansTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return res, nil
}

// evaluateSafely isolates one lead: errors and panics are logged and never
// abort the rest of the scan.
func (s *ReminderService) evaluateSafely(ctx context.Context, lead models.Lead) (outcome evalOutcome, err error) {
	log := s.log.WithField("lead_id", lead.ID)
	defer func() {
		if r := recover(); r != nil {
			metrics.EvaluationErrors.WithLabelValues(reasonPanic).Inc()
			log.WithField("panic", r).Error("reminder evaluation panicked")
			outcome, err = outcomeIdle, fmt.Errorf("panic: %v", r)
		}
	}()

	metrics.LeadsEvaluated.Inc()
	ctx, cancel := context.WithTimeout(ctx, s.evalTimeout)
	defer cancel()

	outcome, err = s.evaluate(ctx, lead)
	if err != nil {
		metrics.EvaluationErrors.WithLabelValues(errorReason(err)).Inc()
		log.WithError(err).Warn("reminder evaluation failed, will retry next tick")
	}
	return outcome, err
}

func (s *ReminderService) evaluate(ctx context.Context, lead models.Lead) (evalOutcome, error) {
	if lead.AssignedTo == nil || lead.Reminder.IsCompleted {
		return outcomeIdle, nil
	}
	if lead.Reminder.Date == nil || lead.Reminder.Date.IsZero() {
		return outcomeIdle, errReminderDateMissing
	}
	due := *lead.Reminder.Date
	now := s.now()

	if HoursLeft(due, now) <= 0 {
		flipped, err := s.leads.MarkReminderCompleted(ctx, lead.ID, due)
		if err != nil {
			return outcomeIdle, fmt.Errorf("mark completed: %w", err)
		}
		if !flipped {
			return outcomeIdle, nil
		}
		metrics.RemindersCompleted.Inc()
		s.log.WithField("lead_id", lead.ID).Info("reminder completed")
		return outcomeCompleted, nil
	}

	user, err := s.users.GetUser(ctx, *lead.AssignedTo)
	if err != nil {
		return outcomeIdle, fmt.Errorf("assigned user %d: %w", *lead.AssignedTo, err)
	}

	decision := DecideReminder(due, now, ResolveLadder(user.ReminderTimeline()))
	if decision.Action != ActionFire {
		return outcomeIdle, nil
	}

	key := DedupKey{LeadID: lead.ID, DueAt: due.Unix(), IntervalHours: decision.Interval.Hours}
	if !s.dedup.TryMark(key, now, due) {
		metrics.NotificationsSuppressed.Inc()
		return outcomeSuppressed, nil
	}

	s.notifier.DeliverReminder(ctx, ReminderEvent{
		Lead:      lead,
		User:      *user,
		Interval:  decision.Interval,
		HoursLeft: decision.HoursLeft,
		FiredAt:   now,
	})
	metrics.NotificationsFired.Inc()
	return outcomeFired, nil
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, errReminderDateMissing):
		return reasonInvalidReminder
	case errors.Is(err, ErrUserNotFound):
		return reasonMissingUser
	default:
		return reasonStore
	}
}
