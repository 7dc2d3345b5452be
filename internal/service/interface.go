package service

import (
	"context"
	"time"

	"github.com/poornimax/crushline/internal/domain"
)

// RelationshipService maintains crush edges and the friendships derived
// from them.
type RelationshipService interface {
	ExpressInterest(ctx context.Context, from, to string) (domain.RelationshipStatus, error)
	WithdrawInterest(ctx context.Context, from, to string) error
	Status(ctx context.Context, a, b string) (domain.RelationshipStatus, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	Stats(ctx context.Context, userID string) (domain.RelationshipStats, error)
	HeartsSent(ctx context.Context, userID string) ([]domain.CrushEdge, error)
	HeartsReceived(ctx context.Context, userID string) ([]domain.CrushEdge, error)
	Friends(ctx context.Context, userID string) ([]string, error)
}

// CompatibilityService scores pairs of users. It never writes.
type CompatibilityService interface {
	// Score returns ok=false when either user has no questionnaire.
	Score(ctx context.Context, a, b string) (score int, ok bool, err error)
	RankCandidates(ctx context.Context, userID string) ([]domain.Candidate, error)
}

// ConversationService owns the message log, read state and watermarks.
type ConversationService interface {
	AppendMessage(ctx context.Context, sender, receiver, content string) (domain.Message, error)
	MarkRead(ctx context.Context, owner, peer string) (int64, error)
	ListConversation(ctx context.Context, owner, peer string) ([]domain.Message, error)
	// OpenConversation marks the peer's messages read, then lists the view.
	OpenConversation(ctx context.Context, owner, peer string) ([]domain.Message, error)
	ClearConversation(ctx context.Context, owner, peer string) error
	// MessagesSince lists the pair's messages after the given instant. The
	// zero time means from the beginning.
	MessagesSince(ctx context.Context, owner, peer string, after time.Time) ([]domain.Message, error)
	ActiveConversations(ctx context.Context, owner string) ([]domain.ConversationSummary, error)
	UnreadPeers(ctx context.Context, owner string) ([]string, error)
	// ResolvePeer checks that owner may open a conversation with peer.
	ResolvePeer(ctx context.Context, owner, peer string) error
}

// SyncService serves clients catching up by cursor.
type SyncService interface {
	ChangesSince(ctx context.Context, owner string, cursor time.Time) (domain.Changes, error)
	MessagesSince(ctx context.Context, owner, peer string, cursor time.Time) ([]domain.Message, error)
}

// Broadcaster delivers an event to every live subscriber of a channel.
type Broadcaster interface {
	Publish(ctx context.Context, channelKey string, event interface{}) error
}

// Option configures a service.
type Option func(*options)

type options struct {
	now        func() time.Time
	maxRetries int
}

func defaultOptions() options {
	return options{
		now:        func() time.Time { return time.Now().UTC() },
		maxRetries: 3,
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxRetries bounds how often the mutual flip is re-run before
// giving up.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
