package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/estate-crm/services"
	"github.com/yeremiapane/estate-crm/utils"
)

// NotificationController hanya mengizinkan penerima membaca dan mengubah
// flag read/archive miliknya sendiri.
type NotificationController struct {
	Repo *services.NotificationRepository
}

func NewNotificationController(repo *services.NotificationRepository) *NotificationController {
	return &NotificationController{Repo: repo}
}

// GetMyNotifications -> GET /notifications?archived=true&unread=true&limit=&offset=
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	filter := services.NotificationFilter{
		IncludeArchived: c.Query("archived") == "true",
		UnreadOnly:      c.Query("unread") == "true",
		Limit:           limit,
		Offset:          offset,
	}

	notifs, total, err := nc.Repo.ListForUser(c.Request.Context(), userID, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", gin.H{
		"items": notifs,
		"total": total,
	})
}

func (nc *NotificationController) GetUnreadCount(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	n, err := nc.Repo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread count", gin.H{"unread": n})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	nc.updateFlag(c, nc.Repo.MarkRead, "Notification marked as read")
}

func (nc *NotificationController) Archive(c *gin.Context) {
	nc.updateFlag(c, nc.Repo.Archive, "Notification archived")
}

func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	n, err := nc.Repo.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": n})
}

func (nc *NotificationController) updateFlag(c *gin.Context, fn func(ctx context.Context, userID, notificationID uint) error, message string) {
	userID, _, err := currentUser(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	notifID, err := parseIDParam(c, "notif_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := fn(c.Request.Context(), userID, notifID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, gin.H{"notif_id": notifID})
}
