package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/utils"
)

// Event types
const (
	EventConnected = "connected"
	EventPong      = "pong"
)

var ErrSessionNotFound = errors.New("realtime session not found")

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Presence menerima event connect/disconnect dan menjawab sesi aktif user.
type Presence interface {
	SetOnline(userID uint, sessionID string)
	SetOffline(sessionID string)
	SessionFor(userID uint) (string, bool)
}

type client struct {
	userID uint
	conn   Conn
	mu     sync.Mutex // satu writer per koneksi
}

// Hub menampung semua koneksi websocket per session ID.
type Hub struct {
	presence     Presence
	clients      map[string]*client
	mutex        sync.RWMutex
	writeTimeout time.Duration
	newSessionID func() string
	log          *logrus.Entry
}

func NewHub(presence Presence) *Hub {
	return &Hub{
		presence:     presence,
		clients:      make(map[string]*client),
		writeTimeout: 5 * time.Second,
		newSessionID: uuid.NewString,
		log:          utils.Component("realtime"),
	}
}

// Register adds an authenticated connection and marks the user online.
// It returns the new session ID.
func (h *Hub) Register(userID uint, conn Conn) string {
	sessionID := h.newSessionID()

	h.mutex.Lock()
	h.clients[sessionID] = &client{userID: userID, conn: conn}
	h.mutex.Unlock()

	h.presence.SetOnline(userID, sessionID)
	h.log.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID}).Info("client connected")
	return sessionID
}

// Unregister melepaskan koneksi dan menandai sesi offline.
func (h *Hub) Unregister(sessionID string) {
	h.mutex.Lock()
	c, ok := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mutex.Unlock()

	h.presence.SetOffline(sessionID)
	if !ok {
		return
	}
	_ = c.conn.Close()
	h.log.WithFields(logrus.Fields{"user_id": c.userID, "session_id": sessionID}).Info("client disconnected")
}

// PushToUser writes an event to the user's current session. It returns
// false without error when the user is not connected; nothing is queued.
func (h *Hub) PushToUser(userID uint, event string, data interface{}) (bool, error) {
	sessionID, ok := h.presence.SessionFor(userID)
	if !ok {
		return false, nil
	}
	if err := h.Send(sessionID, Message{Event: event, Data: data}); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Send writes msg to one session.
func (h *Hub) Send(sessionID string, msg Message) error {
	h.mutex.RLock()
	c, ok := h.clients[sessionID]
	h.mutex.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s to session %s: %w", msg.Event, sessionID, err)
	}
	return nil
}

func (h *Hub) SessionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
