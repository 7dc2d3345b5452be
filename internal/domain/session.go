package domain

import (
	"sync"
	"time"
)

// Session is one authenticated websocket connection bound to a conversation.
type Session struct {
	ID          string
	UserID      string
	Username    string
	PeerID      string
	ChannelKey  string
	ConnectedAt time.Time

	mu           sync.RWMutex
	lastActiveAt time.Time
}

func NewSession(id, userID, username, peerID string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		UserID:       userID,
		Username:     username,
		PeerID:       peerID,
		ChannelKey:   ChannelKey(userID, peerID),
		ConnectedAt:  now,
		lastActiveAt: now,
	}
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
