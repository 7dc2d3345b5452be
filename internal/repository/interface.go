package repository

import (
	"context"
	"time"

	"github.com/poornimax/crushline/internal/domain"
)

// InterestResult describes what ExpressInterest changed.
type InterestResult struct {
	State        domain.PairState
	Created      bool
	BecameMutual bool
}

// WithdrawResult describes what WithdrawInterest changed.
type WithdrawResult struct {
	Removed     bool
	BrokeMutual bool
}

// Profile is a user together with their questionnaire.
type Profile struct {
	User          domain.UserModel
	Questionnaire domain.QuestionnaireModel
}

// ConversationRow is one row of the inbox aggregate.
type ConversationRow struct {
	PeerID        string
	LastMessageAt int64
	HasUnread     bool
}

// UserRepository reads the identity collaborator's tables.
type UserRepository interface {
	Exists(ctx context.Context, userID string) (bool, error)
	GetQuestionnaire(ctx context.Context, userID string) (*domain.QuestionnaireModel, error)
	ListProfiles(ctx context.Context, excludeUserID string) ([]Profile, error)
}

// RelationshipRepository persists crush edges and friendships. Every
// mutating method runs in one transaction.
type RelationshipRepository interface {
	ExpressInterest(ctx context.Context, from, to string, now time.Time) (InterestResult, error)
	WithdrawInterest(ctx context.Context, from, to string) (WithdrawResult, error)
	PairState(ctx context.Context, from, to string) (domain.PairState, error)
	FriendshipExists(ctx context.Context, a, b string) (bool, error)
	Stats(ctx context.Context, userID string) (domain.RelationshipStats, error)
	PendingSent(ctx context.Context, userID string) ([]domain.CrushEdge, error)
	PendingReceived(ctx context.Context, userID string) ([]domain.CrushEdge, error)
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

// MessageRepository persists messages and deletion watermarks.
// Timestamps are unix nanoseconds.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.MessageModel) error
	MarkRead(ctx context.Context, owner, peer string, readAt int64) (int64, error)
	Watermark(ctx context.Context, owner, peer string) (int64, bool, error)
	UpsertWatermark(ctx context.Context, owner, peer string, deletedAt int64) error
	// MessagesBetween returns the pair's messages with after < sent_at <= upTo, ascending.
	MessagesBetween(ctx context.Context, owner, peer string, after, upTo int64) ([]domain.MessageModel, error)
	// VisibleMessages applies owner's watermark.
	VisibleMessages(ctx context.Context, owner, peer string) ([]domain.MessageModel, error)
	ActiveConversations(ctx context.Context, owner string) ([]ConversationRow, error)
	// ReceiveSince returns peer→owner messages newer than both the cursor
	// and owner's watermark and marks them read in the same transaction.
	ReceiveSince(ctx context.Context, owner, peer string, cursor, readAt int64) ([]domain.MessageModel, error)
	HasMessageSince(ctx context.Context, owner string, cursor int64) (bool, error)
	HasDeletionSince(ctx context.Context, owner string, cursor int64) (bool, error)
	HasReadSince(ctx context.Context, owner string, cursor int64) (bool, error)
}
