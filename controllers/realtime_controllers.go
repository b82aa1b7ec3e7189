package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/estate-crm/realtime"
	"github.com/yeremiapane/estate-crm/utils"
)

const (
	wsReadTimeout  = 90 * time.Second
	wsMaxReadBytes = 4096
)

type RealtimeController struct {
	Hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeController; allowedOrigin "*" menerima semua origin.
func NewRealtimeController(hub *realtime.Hub, allowedOrigin string) *RealtimeController {
	return &RealtimeController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

type inboundMessage struct {
	Event string `json:"event"`
}

// Handle -> endpoint WebSocket. Session hidup selama koneksi terbuka.
func (rc *RealtimeController) Handle(c *gin.Context) {
	userID, _, err := currentUser(c)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sessionID := rc.Hub.Register(userID, ws)
	defer rc.Hub.Unregister(sessionID)

	_ = rc.Hub.Send(sessionID, realtime.Message{
		Event: realtime.EventConnected,
		Data:  gin.H{"session_id": sessionID},
	})

	ws.SetReadLimit(wsMaxReadBytes)
	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if msg.Event == "ping" {
			if err := rc.Hub.Send(sessionID, realtime.Message{Event: realtime.EventPong}); err != nil {
				return
			}
		}
	}
}
