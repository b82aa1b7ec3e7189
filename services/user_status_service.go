package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/estate-crm/metrics"
	"github.com/yeremiapane/estate-crm/utils"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

type PresenceEntry struct {
	Status    PresenceStatus `json:"status"`
	LastSeen  time.Time      `json:"last_seen"`
	SessionID string         `json:"session_id,omitempty"`
}

// UserStatusService melacak user mana yang sedang terhubung ke transport
// real-time. Satu entry per user; sesi terbaru menimpa sesi sebelumnya.
// Tidak ada persistensi, hanya valid untuk satu proses.
type UserStatusService struct {
	mu       sync.RWMutex
	users    map[uint]PresenceEntry
	sessions map[string]uint // sessionID -> userID
	now      func() time.Time
	log      *logrus.Entry
}

func NewUserStatusService() *UserStatusService {
	return &UserStatusService{
		users:    make(map[uint]PresenceEntry),
		sessions: make(map[string]uint),
		now:      time.Now,
		log:      utils.Component("user_status"),
	}
}

// SetOnline records sessionID as the user's current session.
func (s *UserStatusService) SetOnline(userID uint, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.users[userID]; ok && prev.SessionID != "" && prev.SessionID != sessionID {
		delete(s.sessions, prev.SessionID)
	}
	s.users[userID] = PresenceEntry{
		Status:    StatusOnline,
		LastSeen:  s.now(),
		SessionID: sessionID,
	}
	s.sessions[sessionID] = userID
	s.updateGauge()

	s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID}).Debug("user online")
}

// SetOffline marks the owner of sessionID offline. A session that was already
// replaced by a newer one is ignored.
func (s *UserStatusService) SetOffline(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.sessions, sessionID)

	entry := s.users[userID]
	if entry.SessionID != sessionID {
		return
	}
	s.users[userID] = PresenceEntry{
		Status:   StatusOffline,
		LastSeen: s.now(),
	}
	s.updateGauge()

	s.log.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID}).Debug("user offline")
}

func (s *UserStatusService) IsOnline(userID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].Status == StatusOnline
}

// SessionFor returns the user's current session if the user is online.
func (s *UserStatusService) SessionFor(userID uint) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.users[userID]
	if !ok || entry.Status != StatusOnline {
		return "", false
	}
	return entry.SessionID, true
}

// GetStatuses returns one entry per requested user; unknown users are offline.
func (s *UserStatusService) GetStatuses(userIDs []uint) map[uint]PresenceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint]PresenceEntry, len(userIDs))
	for _, id := range userIDs {
		entry, ok := s.users[id]
		if !ok {
			entry = PresenceEntry{Status: StatusOffline}
		}
		out[id] = entry
	}
	return out
}

// onlineCount harus dipanggil dengan lock sudah dipegang.
func (s *UserStatusService) onlineCount() int {
	n := 0
	for _, e := range s.users {
		if e.Status == StatusOnline {
			n++
		}
	}
	return n
}

func (s *UserStatusService) updateGauge() {
	metrics.UsersOnline.Set(float64(s.onlineCount()))
}
