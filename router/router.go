package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/estate-crm/controllers"
	"github.com/yeremiapane/estate-crm/metrics"
	"github.com/yeremiapane/estate-crm/middlewares"
	"github.com/yeremiapane/estate-crm/realtime"
	"github.com/yeremiapane/estate-crm/services"
	"gorm.io/gorm"
)

// Deps adalah semua yang dibutuhkan router untuk membangun controller.
type Deps struct {
	DB            *gorm.DB
	Users         *services.UserService
	Leads         *services.LeadService
	Notifications *services.NotificationRepository
	Presence      *services.UserStatusService
	Hub           *realtime.Hub
	CORSOrigin    string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(d.DB, d.Users, d.Presence)
	leadCtrl := controllers.NewLeadController(d.Leads, d.Users)
	notificationCtrl := controllers.NewNotificationController(d.Notifications)
	realtimeCtrl := controllers.NewRealtimeController(d.Hub, d.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter().RateLimit())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// WebSocket, token lewat query
	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), realtimeCtrl.Handle)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/me/notification-settings", userCtrl.GetNotificationSettings)
	auth.PUT("/me/notification-settings", userCtrl.UpdateNotificationSettings)

	// LEADS
	auth.POST("/leads", leadCtrl.CreateLead)
	auth.GET("/leads/:lead_id", leadCtrl.GetLead)
	auth.PUT("/leads/:lead_id/reminder", leadCtrl.SetReminder)
	auth.DELETE("/leads/:lead_id/reminder", leadCtrl.ClearReminder)
	auth.POST("/leads/:lead_id/reminder/complete", leadCtrl.CompleteReminder)

	// NOTIFICATIONS (milik user sendiri)
	auth.GET("/notifications", notificationCtrl.GetMyNotifications)
	auth.GET("/notifications/unread-count", notificationCtrl.GetUnreadCount)
	auth.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkRead)
	auth.PATCH("/notifications/:notif_id/archive", notificationCtrl.Archive)
	auth.POST("/notifications/read-all", notificationCtrl.MarkAllRead)

	// Anggota company hanya ditambahkan admin
	auth.POST("/users", middlewares.RequireRole("admin"), userCtrl.AddMember)

	// Presence tim, hanya manager/admin
	auth.GET("/users/status", middlewares.RequireRole("manager"), userCtrl.GetStatuses)

	return r
}
