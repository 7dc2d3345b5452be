package domain

import (
	"time"

	"github.com/poornimax/crushline/pkg/database"
)

// UserModel is the read-only view of the identity collaborator's users table.
type UserModel struct {
	ID       string    `gorm:"primaryKey;type:varchar(36)"`
	Username string    `gorm:"type:varchar(150);not null"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string { return "users" }

// QuestionnaireModel holds a user's profile questionnaire answers.
type QuestionnaireModel struct {
	UserID             string               `gorm:"primaryKey;type:varchar(36)"`
	Personality        string               `gorm:"type:varchar(64)"`
	CommunicationStyle string               `gorm:"type:varchar(64)"`
	Hobbies            database.StringArray `gorm:"type:text"`
	Year               string               `gorm:"type:varchar(32)"`
	RelationshipStatus string               `gorm:"type:varchar(64)"`
	LookingFor         string               `gorm:"type:varchar(64)"`
}

func (QuestionnaireModel) TableName() string { return "user_questionnaires" }

// CrushModel is one directed interest edge.
type CrushModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SenderID   string    `gorm:"column:sender_id;type:varchar(36);not null;uniqueIndex:idx_crush_pair,priority:1"`
	ReceiverID string    `gorm:"column:receiver_id;type:varchar(36);not null;uniqueIndex:idx_crush_pair,priority:2;index"`
	IsMutual   bool      `gorm:"column:is_mutual;not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (CrushModel) TableName() string { return "crushes" }

// FriendshipModel is stored once per unordered pair, with UserLow < UserHigh.
type FriendshipModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	UserLow     string    `gorm:"column:user_low;type:varchar(36);not null;uniqueIndex:idx_friendship_pair,priority:1"`
	UserHigh    string    `gorm:"column:user_high;type:varchar(36);not null;uniqueIndex:idx_friendship_pair,priority:2;index"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ConfirmedAt time.Time `gorm:"column:confirmed_at"`
}

func (FriendshipModel) TableName() string { return "friendships" }

// MessageModel is one entry of a pair's append-only message log.
// Timestamps are unix nanoseconds.
type MessageModel struct {
	ID         string `gorm:"primaryKey;type:varchar(26)"`
	SenderID   string `gorm:"column:sender_id;type:varchar(36);not null;index"`
	ReceiverID string `gorm:"column:receiver_id;type:varchar(36);not null;index:idx_message_receiver_read,priority:1"`
	PairKey    string `gorm:"column:pair_key;type:varchar(80);not null;index:idx_message_pair_sent,priority:1"`
	Content    string `gorm:"column:content;type:text;not null"`
	SentAt     int64  `gorm:"column:sent_at;not null;index:idx_message_pair_sent,priority:2"`
	IsRead     bool   `gorm:"column:is_read;not null;default:false;index:idx_message_receiver_read,priority:2"`
	ReadAt     *int64 `gorm:"column:read_at"`
}

func (MessageModel) TableName() string { return "messages" }

// DeletionWatermarkModel marks the instant the owner cleared their view
// of a conversation.
type DeletionWatermarkModel struct {
	OwnerID   string `gorm:"primaryKey;column:owner_id;type:varchar(36)"`
	PeerID    string `gorm:"primaryKey;column:peer_id;type:varchar(36)"`
	DeletedAt int64  `gorm:"column:deleted_at;not null"`
}

func (DeletionWatermarkModel) TableName() string { return "deletion_watermarks" }

// Models lists every table for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&QuestionnaireModel{},
		&CrushModel{},
		&FriendshipModel{},
		&MessageModel{},
		&DeletionWatermarkModel{},
	}
}
