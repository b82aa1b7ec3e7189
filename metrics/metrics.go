package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery channels and outcomes used as label values.
const (
	ChannelPersist = "persist"
	ChannelPush    = "push"
	ChannelEmail   = "email"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	// Reminder scan metrics
	ReminderScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_reminder_scans_total",
			Help: "Total number of reminder scan ticks by outcome",
		},
		[]string{"outcome"},
	)

	ReminderScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_reminder_scan_duration_seconds",
			Help:    "Time taken by one reminder scan in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LeadsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_reminder_leads_evaluated_total",
			Help: "Total number of leads evaluated by the reminder scan",
		},
	)

	NotificationsFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_reminder_notifications_fired_total",
			Help: "Total number of reminder notifications fired",
		},
	)

	NotificationsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_reminder_notifications_suppressed_total",
			Help: "Total number of reminder triggers suppressed by the dedup cache",
		},
	)

	RemindersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_reminders_completed_total",
			Help: "Total number of reminders retired by the scan",
		},
	)

	EvaluationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_reminder_evaluation_errors_total",
			Help: "Total number of per-lead evaluation failures by reason",
		},
		[]string{"reason"},
	)

	// Delivery metrics
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_notification_deliveries_total",
			Help: "Total number of notification delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	NotificationsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_notifications_purged_total",
			Help: "Total number of expired notifications deleted",
		},
	)

	// Presence metrics
	UsersOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_users_online",
			Help: "Number of users with a live real-time session",
		},
	)
)

func init() {
	prometheus.MustRegister(ReminderScansTotal)
	prometheus.MustRegister(ReminderScanDuration)
	prometheus.MustRegister(LeadsEvaluated)
	prometheus.MustRegister(NotificationsFired)
	prometheus.MustRegister(NotificationsSuppressed)
	prometheus.MustRegister(RemindersCompleted)
	prometheus.MustRegister(EvaluationErrors)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(NotificationsPurged)
	prometheus.MustRegister(UsersOnline)
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time on h in seconds.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// RecordDelivery increments the delivery counter for one channel attempt.
func RecordDelivery(channel, outcome string) {
	DeliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
