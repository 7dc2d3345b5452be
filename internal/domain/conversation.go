package domain

import "time"

// Message is a stored chat message.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Content    string     `json:"content"`
	SentAt     time.Time  `json:"sent_at"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// ConversationSummary is one inbox row.
type ConversationSummary struct {
	PeerID          string    `json:"peer_id"`
	LastMessageTime time.Time `json:"last_message_time"`
	HasUnread       bool      `json:"has_unread"`
}

// Changes tells a polling client which views are stale.
type Changes struct {
	NewMessageExists bool `json:"new_messages"`
	DeletionExists   bool `json:"deleted_chats"`
	ReadStateChanged bool `json:"read_messages"`
}

// Any reports whether anything changed.
func (c Changes) Any() bool {
	return c.NewMessageExists || c.DeletionExists || c.ReadStateChanged
}

// UnixNano converts t for storage. The zero time maps to 0.
func UnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// FromUnixNano converts a stored timestamp back to UTC.
func FromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// ToMessage converts the storage model.
func (m *MessageModel) ToMessage() Message {
	msg := Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		SentAt:     FromUnixNano(m.SentAt),
		Read:       m.IsRead,
	}
	if m.ReadAt != nil {
		t := FromUnixNano(*m.ReadAt)
		msg.ReadAt = &t
	}
	return msg
}
