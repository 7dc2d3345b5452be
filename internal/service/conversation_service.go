package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/poornimax/crushline/internal/archive"
	"github.com/poornimax/crushline/internal/audit"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/pairlock"
	"github.com/poornimax/crushline/internal/repository"
	"github.com/poornimax/crushline/pkg/apperr"
	pkglog "github.com/poornimax/crushline/pkg/log"
)

// MaxContentBytes bounds a single message body.
const MaxContentBytes = 4096

type conversationService struct {
	repo        repository.MessageRepository
	users       repository.UserRepository
	broadcaster Broadcaster
	archiver    archive.Archiver
	locker      pairlock.Locker
	inbox       singleflight.Group
	opts        options
}

// NewConversationService creates a new ConversationService instance.
func NewConversationService(
	repo repository.MessageRepository,
	users repository.UserRepository,
	broadcaster Broadcaster,
	archiver archive.Archiver,
	locker pairlock.Locker,
	opts ...Option,
) ConversationService {
	return &conversationService{
		repo:        repo,
		users:       users,
		broadcaster: broadcaster,
		archiver:    archiver,
		locker:      locker,
		opts:        buildOptions(opts),
	}
}

// AppendMessage stores the message, then publishes it to the pair's
// channel. A failed publish is logged and the stored message is returned.
func (s *conversationService) AppendMessage(ctx context.Context, sender, receiver, content string) (domain.Message, error) {
	l := pkglog.Ctx(ctx)

	if strings.TrimSpace(content) == "" {
		return domain.Message{}, ErrEmptyContent
	}
	if len(content) > MaxContentBytes {
		return domain.Message{}, ErrContentTooLong
	}
	if err := s.ResolvePeer(ctx, sender, receiver); err != nil {
		return domain.Message{}, err
	}

	// The timestamp and the insert share the pair lock with clears, so a
	// clear either sees this row or fixes its watermark before it.
	unlock, err := s.lockPair(ctx, sender, receiver)
	if err != nil {
		return domain.Message{}, err
	}
	now := s.opts.now()
	model := &domain.MessageModel{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		SenderID:   sender,
		ReceiverID: receiver,
		PairKey:    domain.PairKey(sender, receiver),
		Content:    content,
		SentAt:     domain.UnixNano(now),
	}
	err = s.repo.Create(ctx, model)
	unlock()
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldPeerID, receiver).Msg("failed to store message")
		return domain.Message{}, storeError("failed to store message", err)
	}

	msg := model.ToMessage()
	audit.LogWithDetail(ctx, audit.ActionChatSend, sender, receiver, msg.ID, "message sent")

	s.publish(ctx, domain.ChannelKey(sender, receiver), domain.NewChatMessageOut(msg))
	return msg, nil
}

// MarkRead flips every unread message from peer to owner. When anything
// changed, a read receipt goes out on the pair's channel.
func (s *conversationService) MarkRead(ctx context.Context, owner, peer string) (int64, error) {
	if err := s.ResolvePeer(ctx, owner, peer); err != nil {
		return 0, err
	}

	n, err := s.repo.MarkRead(ctx, owner, peer, domain.UnixNano(s.opts.now()))
	if err != nil {
		return 0, storeError("failed to mark messages read", err)
	}
	if n > 0 {
		s.publish(ctx, domain.ChannelKey(owner, peer), domain.NewReadReceiptOut(owner, n))
	}
	return n, nil
}

func (s *conversationService) ListConversation(ctx context.Context, owner, peer string) ([]domain.Message, error) {
	if err := s.ResolvePeer(ctx, owner, peer); err != nil {
		return nil, err
	}

	models, err := s.repo.VisibleMessages(ctx, owner, peer)
	if err != nil {
		return nil, storeError("failed to list conversation", err)
	}
	return toMessages(models), nil
}

func (s *conversationService) OpenConversation(ctx context.Context, owner, peer string) ([]domain.Message, error) {
	if _, err := s.MarkRead(ctx, owner, peer); err != nil {
		return nil, err
	}
	return s.ListConversation(ctx, owner, peer)
}

// ClearConversation hides everything up to now from owner's view of the
// pair. The hidden messages are archived first; if that fails the
// watermark stays where it was.
func (s *conversationService) ClearConversation(ctx context.Context, owner, peer string) error {
	l := pkglog.Ctx(ctx)

	if err := s.ResolvePeer(ctx, owner, peer); err != nil {
		return err
	}

	unlock, err := s.lockPair(ctx, owner, peer)
	if err != nil {
		return err
	}
	defer unlock()

	old, _, err := s.repo.Watermark(ctx, owner, peer)
	if err != nil {
		return storeError("failed to read watermark", err)
	}

	now := s.opts.now()
	models, err := s.repo.MessagesBetween(ctx, owner, peer, old, domain.UnixNano(now))
	if err != nil {
		return storeError("failed to collect messages", err)
	}

	if len(models) > 0 {
		if err := s.archiver.Archive(ctx, owner, peer, toMessages(models), now); err != nil {
			l.Error().Err(err).Str(pkglog.FieldPeerID, peer).Msg("failed to archive conversation")
			return ErrArchiveFailed
		}
	}

	if err := s.repo.UpsertWatermark(ctx, owner, peer, domain.UnixNano(now)); err != nil {
		return storeError("failed to move watermark", err)
	}

	audit.LogWithDetail(ctx, audit.ActionChatClear, owner, peer, now.Format(time.RFC3339Nano), "conversation cleared")
	return nil
}

// MessagesSince ignores the watermark; it is the archival view.
func (s *conversationService) MessagesSince(ctx context.Context, owner, peer string, after time.Time) ([]domain.Message, error) {
	models, err := s.repo.MessagesBetween(ctx, owner, peer, domain.UnixNano(after), math.MaxInt64)
	if err != nil {
		return nil, storeError("failed to list messages", err)
	}
	return toMessages(models), nil
}

// ActiveConversations collapses concurrent calls for the same owner into
// one query.
func (s *conversationService) ActiveConversations(ctx context.Context, owner string) ([]domain.ConversationSummary, error) {
	// The shared query outlives any one caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.inbox.Do(owner, func() (interface{}, error) {
		return s.repo.ActiveConversations(shared, owner)
	})
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str(pkglog.FieldUserID, owner).Msg("failed to load inbox")
		return nil, storeError("failed to load inbox", err)
	}

	rows := v.([]repository.ConversationRow)
	out := make([]domain.ConversationSummary, len(rows))
	for i, r := range rows {
		out[i] = domain.ConversationSummary{
			PeerID:          r.PeerID,
			LastMessageTime: domain.FromUnixNano(r.LastMessageAt),
			HasUnread:       r.HasUnread,
		}
	}
	return out, nil
}

func (s *conversationService) UnreadPeers(ctx context.Context, owner string) ([]string, error) {
	convs, err := s.ActiveConversations(ctx, owner)
	if err != nil {
		return nil, err
	}

	peers := []string{}
	for _, c := range convs {
		if c.HasUnread {
			peers = append(peers, c.PeerID)
		}
	}
	return peers, nil
}

func (s *conversationService) ResolvePeer(ctx context.Context, owner, peer string) error {
	if owner == peer {
		return ErrSelfReference
	}
	return requireUser(ctx, s.users, peer)
}

// lockPair serialises sends and clears on one conversation. The key is
// kept apart from the relationship lock on the same pair.
func (s *conversationService) lockPair(ctx context.Context, a, b string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "chat:"+domain.PairKey(a, b))
	if err != nil {
		if errors.Is(err, pairlock.ErrLockTimeout) || ctx.Err() != nil {
			return nil, apperr.Transient("conversation is busy, try again", err)
		}
		return nil, storeError("failed to lock conversation", err)
	}
	return unlock, nil
}

func (s *conversationService) publish(ctx context.Context, key string, event interface{}) {
	if err := s.broadcaster.Publish(ctx, key, event); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str(pkglog.FieldChannelKey, key).Msg("failed to publish conversation event")
	}
}

func toMessages(models []domain.MessageModel) []domain.Message {
	out := make([]domain.Message, len(models))
	for i := range models {
		out[i] = models[i].ToMessage()
	}
	return out
}

var _ ConversationService = (*conversationService)(nil)
