package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MaxReminderScanInterval is the longest scan period that still observes
// every band of the default ladder (its smallest threshold is 30 minutes).
const MaxReminderScanInterval = 30 * time.Minute

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Settings struct {
	AppName    string        `envconfig:"APP_NAME" default:"Estate CRM"`
	Port       string        `envconfig:"PORT" default:"8080"`
	GinMode    string        `envconfig:"GIN_MODE" default:"debug"`
	CORSOrigin string        `envconfig:"CORS_ORIGIN" default:"*"`
	DBDriver   string        `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN      string        `envconfig:"DB_DSN" default:"estate_crm.db"`
	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL     time.Duration `envconfig:"JWT_TTL" default:"24h"`
	LogLevel   string        `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON    bool          `envconfig:"LOG_JSON" default:"false"`

	ReminderScanInterval time.Duration `envconfig:"REMINDER_SCAN_INTERVAL" default:"1m"`
	ReminderDedupWindow  time.Duration `envconfig:"REMINDER_DEDUP_WINDOW" default:"2h"`
	ReminderEvalTimeout  time.Duration `envconfig:"REMINDER_EVAL_TIMEOUT" default:"30s"`
	DeliveryTimeout      time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"10s"`

	NotificationTTL           time.Duration `envconfig:"NOTIFICATION_TTL" default:"720h"`
	NotificationPurgeInterval time.Duration `envconfig:"NOTIFICATION_PURGE_INTERVAL" default:"1h"`

	SMTPSettings
}

type SMTPSettings struct {
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@estate-crm.local"`
}

// SMTPEnabled reports whether outbound email is configured at all.
func (s SMTPSettings) SMTPEnabled() bool {
	return s.SMTPHost != ""
}

// Load membaca environment (setelah godotenv di main) ke Settings dan memvalidasinya.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return s, fmt.Errorf("load settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.ReminderScanInterval <= 0 || s.ReminderScanInterval > MaxReminderScanInterval {
		errs = append(errs, fmt.Errorf("REMINDER_SCAN_INTERVAL must be in (0, %s], got %s", MaxReminderScanInterval, s.ReminderScanInterval))
	}
	if s.ReminderDedupWindow <= 0 {
		errs = append(errs, errors.New("REMINDER_DEDUP_WINDOW must be positive"))
	}
	if s.ReminderEvalTimeout <= 0 {
		errs = append(errs, errors.New("REMINDER_EVAL_TIMEOUT must be positive"))
	}
	if s.DeliveryTimeout <= 0 {
		errs = append(errs, errors.New("DELIVERY_TIMEOUT must be positive"))
	}
	if s.NotificationTTL <= 0 {
		errs = append(errs, errors.New("NOTIFICATION_TTL must be positive"))
	}
	if s.NotificationPurgeInterval <= 0 {
		errs = append(errs, errors.New("NOTIFICATION_PURGE_INTERVAL must be positive"))
	}
	switch s.DBDriver {
	case DriverMySQL, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", s.DBDriver))
	}
	return errors.Join(errs...)
}
