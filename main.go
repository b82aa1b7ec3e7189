package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/config"
	"github.com/yeremiapane/estate-crm/models"
	"github.com/yeremiapane/estate-crm/realtime"
	"github.com/yeremiapane/estate-crm/router"
	"github.com/yeremiapane/estate-crm/services"
	"github.com/yeremiapane/estate-crm/utils"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env di awal sebelum apapun
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	utils.InitLogger(settings.LogLevel, settings.LogJSON)
	utils.SetJWTConfig(settings.JWTSecret, settings.JWTTTL)

	if settings.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(settings)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	autoMigrate(db)

	app := buildApp(db, settings)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.reminders.Start(ctx)
	app.janitor.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.WithField("port", settings.Port).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.WithError(err).Error("http server shutdown")
	}

	// tunggu evaluasi lead yang sedang berjalan selesai
	app.reminders.Stop()
	app.janitor.Stop()
	utils.InfoLogger.Info("Shutdown complete")
}

type app struct {
	engine    *gin.Engine
	reminders *services.ReminderService
	janitor   *services.NotificationJanitor
}

func buildApp(db *gorm.DB, s config.Settings) *app {
	presence := services.NewUserStatusService()
	hub := realtime.NewHub(presence)

	leads := services.NewLeadService(db)
	users := services.NewUserService(db)
	notifications := services.NewNotificationRepository(db)

	var email services.EmailSender = services.NoopEmailSender{}
	if s.SMTPEnabled() {
		email = services.NewSMTPEmailSender(services.SMTPConfig{
			Host:     s.SMTPHost,
			Port:     s.SMTPPort,
			Username: s.SMTPUsername,
			Password: s.SMTPPassword,
			From:     s.SMTPFrom,
			Timeout:  s.DeliveryTimeout,
		})
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"smtp_enabled":  s.SMTPEnabled(),
		"scan_interval": s.ReminderScanInterval.String(),
		"dedup_window":  s.ReminderDedupWindow.String(),
	}).Info("reminder pipeline configured")

	fanout := services.NewNotificationService(notifications, hub, email, services.NotificationServiceConfig{
		AppName:         s.AppName,
		TTL:             s.NotificationTTL,
		DeliveryTimeout: s.DeliveryTimeout,
	})
	reminders := services.NewReminderService(leads, users, fanout, services.NewDedupCache(s.ReminderDedupWindow), services.ReminderServiceConfig{
		Interval:    s.ReminderScanInterval,
		EvalTimeout: s.ReminderEvalTimeout,
	})

	engine := router.SetupRouter(router.Deps{
		DB:            db,
		Users:         users,
		Leads:         leads,
		Notifications: notifications,
		Presence:      presence,
		Hub:           hub,
		CORSOrigin:    s.CORSOrigin,
	})

	return &app{
		engine:    engine,
		reminders: reminders,
		janitor:   services.NewNotificationJanitor(notifications, s.NotificationPurgeInterval),
	}
}

func autoMigrate(db *gorm.DB) {
	if err := db.AutoMigrate(models.All()...); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Info("AutoMigrate completed.")
}
