package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poornimax/crushline/internal/dbtest"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/pairlock"
	"github.com/poornimax/crushline/internal/repository"
	"github.com/poornimax/crushline/pkg/apperr"
)

type conversationFixture struct {
	conv        ConversationService
	sync        SyncService
	broadcaster *recordingBroadcaster
	archiver    *fakeArchiver
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()

	db := dbtest.New(t)
	dbtest.SeedUsers(t, db, "alice", "bob", "carol")

	messages := repository.NewGormMessageRepository(db)
	users := repository.NewGormUserRepository(db)
	clock := WithClock(newStepClock().Now)
	broadcaster := &recordingBroadcaster{}
	archiver := &fakeArchiver{}

	return &conversationFixture{
		conv:        NewConversationService(messages, users, broadcaster, archiver, pairlock.NewLocalLocker(), clock),
		sync:        NewSyncService(messages, users, clock),
		broadcaster: broadcaster,
		archiver:    archiver,
	}
}

func (f *conversationFixture) send(t *testing.T, from, to, content string) domain.Message {
	t.Helper()
	msg, err := f.conv.AppendMessage(context.Background(), from, to, content)
	require.NoError(t, err)
	return msg
}

func contents(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestAppendMessage_StoresAndPublishes(t *testing.T) {
	f := newConversationFixture(t)

	msg := f.send(t, "alice", "bob", "hi")
	assert.Len(t, msg.ID, 26)
	assert.Equal(t, "alice", msg.SenderID)
	assert.False(t, msg.Read)

	sent := f.broadcaster.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "dm:alice:bob", sent[0].key)
	out, ok := sent[0].event.(*domain.ChatMessageOut)
	require.True(t, ok)
	assert.Equal(t, domain.MsgTypeChatMessage, out.Type)
	assert.Equal(t, msg.ID, out.Message.ID)
}

func TestAppendMessage_PublishFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)
	f.broadcaster.err = errors.New("bus down")

	_, err := f.conv.AppendMessage(ctx, "alice", "bob", "still here")
	require.NoError(t, err)

	msgs, err := f.conv.ListConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"still here"}, contents(msgs))
}

func TestAppendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	tests := []struct {
		name     string
		receiver string
		content  string
		want     error
	}{
		{"empty", "bob", "", ErrEmptyContent},
		{"blank", "bob", " \n\t", ErrEmptyContent},
		{"too long", "bob", strings.Repeat("x", MaxContentBytes+1), ErrContentTooLong},
		{"self", "alice", "hi", ErrSelfReference},
		{"unknown receiver", "nobody", "hi", ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.conv.AppendMessage(ctx, "alice", tt.receiver, tt.content)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.broadcaster.all())
}

func TestClearConversation_IdempotentAndOneSided(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	f.send(t, "alice", "bob", "hi")
	f.send(t, "bob", "alice", "hey")

	require.NoError(t, f.conv.ClearConversation(ctx, "alice", "bob"))
	first, err := f.conv.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, first)

	require.NoError(t, f.conv.ClearConversation(ctx, "alice", "bob"))
	second, err := f.conv.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := f.conv.ListConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "hey"}, contents(other))

	require.Len(t, f.archiver.calls, 1, "the second clear has nothing to archive")
	assert.Equal(t, []string{"hi", "hey"}, contents(f.archiver.calls[0]))

	f.send(t, "bob", "alice", "after")
	msgs, err := f.conv.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, contents(msgs))
}

func TestClearConversation_ArchiveFailureKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)
	f.send(t, "alice", "bob", "hi")
	f.archiver.err = errors.New("disk full")

	err := f.conv.ClearConversation(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrArchiveFailed)
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))

	msgs, err := f.conv.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMessagesSince_IgnoresWatermark(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	first := f.send(t, "alice", "bob", "one")
	f.send(t, "bob", "alice", "two")
	require.NoError(t, f.conv.ClearConversation(ctx, "alice", "bob"))

	all, err := f.conv.MessagesSince(ctx, "alice", "bob", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, contents(all))

	later, err := f.conv.MessagesSince(ctx, "alice", "bob", first.SentAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, contents(later))
}

func TestMarkRead_PublishesReceipt(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)
	f.send(t, "alice", "bob", "one")
	f.send(t, "alice", "bob", "two")

	n, err := f.conv.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = f.conv.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	sent := f.broadcaster.all()
	require.Len(t, sent, 3, "two messages and one receipt")
	receipt, ok := sent[2].event.(*domain.ReadReceiptOut)
	require.True(t, ok)
	assert.Equal(t, "bob", receipt.ReaderID)
	assert.EqualValues(t, 2, receipt.Count)
}

func TestInboxFlow(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	hi := f.send(t, "alice", "bob", "hi")

	inbox, err := f.conv.ActiveConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "alice", inbox[0].PeerID)
	assert.True(t, inbox[0].HasUnread)
	assert.True(t, inbox[0].LastMessageTime.Equal(hi.SentAt))

	unread, err := f.conv.UnreadPeers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, unread)

	opened, err := f.conv.OpenConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.True(t, opened[0].Read)

	inbox, err = f.conv.ActiveConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.False(t, inbox[0].HasUnread)

	unread, err = f.conv.UnreadPeers(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, unread)

	f.send(t, "alice", "bob", "you there?")

	changes, err := f.sync.ChangesSince(ctx, "bob", hi.SentAt)
	require.NoError(t, err)
	assert.True(t, changes.NewMessageExists)
}

func TestActiveConversations_ConcurrentCallsAgree(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)
	f.send(t, "alice", "bob", "hi")
	f.send(t, "carol", "bob", "yo")

	var wg sync.WaitGroup
	results := make([][]domain.ConversationSummary, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inbox, err := f.conv.ActiveConversations(ctx, "bob")
			assert.NoError(t, err)
			results[i] = inbox
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Len(t, r, 2)
		assert.Equal(t, "carol", r[0].PeerID, "newest first")
		assert.Equal(t, "alice", r[1].PeerID)
	}
}

func TestResolvePeer(t *testing.T) {
	ctx := context.Background()
	f := newConversationFixture(t)

	assert.NoError(t, f.conv.ResolvePeer(ctx, "alice", "bob"))
	assert.ErrorIs(t, f.conv.ResolvePeer(ctx, "alice", "alice"), ErrSelfReference)
	assert.ErrorIs(t, f.conv.ResolvePeer(ctx, "alice", "nobody"), ErrUserNotFound)
}

// stallingMessages holds Create until a clear has collected the pair's
// messages, or until wait runs out.
type stallingMessages struct {
	repository.MessageRepository
	wait      time.Duration
	entered   chan struct{}
	collected chan struct{}
	enterOnce sync.Once
	collOnce  sync.Once
}

func newStallingMessages(inner repository.MessageRepository) *stallingMessages {
	return &stallingMessages{
		MessageRepository: inner,
		wait:              200 * time.Millisecond,
		entered:           make(chan struct{}),
		collected:         make(chan struct{}),
	}
}

func (r *stallingMessages) Create(ctx context.Context, msg *domain.MessageModel) error {
	r.enterOnce.Do(func() { close(r.entered) })
	select {
	case <-r.collected:
	case <-time.After(r.wait):
	}
	return r.MessageRepository.Create(ctx, msg)
}

func (r *stallingMessages) MessagesBetween(ctx context.Context, owner, peer string, after, upTo int64) ([]domain.MessageModel, error) {
	models, err := r.MessageRepository.MessagesBetween(ctx, owner, peer, after, upTo)
	r.collOnce.Do(func() { close(r.collected) })
	return models, err
}

func TestClearConversation_SendDuringClearIsArchivedOrVisible(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	dbtest.SeedUsers(t, db, "alice", "bob")

	messages := newStallingMessages(repository.NewGormMessageRepository(db))
	archiver := &fakeArchiver{}
	conv := NewConversationService(messages, repository.NewGormUserRepository(db), &recordingBroadcaster{},
		archiver, pairlock.NewLocalLocker(), WithClock(newStepClock().Now))

	sendErr := make(chan error, 1)
	go func() {
		_, err := conv.AppendMessage(ctx, "bob", "alice", "sent during clear")
		sendErr <- err
	}()

	<-messages.entered
	require.NoError(t, conv.ClearConversation(ctx, "alice", "bob"))
	require.NoError(t, <-sendErr)

	visible, err := conv.ListConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	archived := 0
	archiver.mu.Lock()
	for _, call := range archiver.calls {
		for _, m := range call {
			if m.Content == "sent during clear" {
				archived++
			}
		}
	}
	archiver.mu.Unlock()

	assert.Equal(t, 1, len(visible)+archived, "the message must be either archived or still visible, exactly once")
}

type busyConversationLocker struct{}

func (busyConversationLocker) Lock(context.Context, string) (func(), error) {
	return nil, pairlock.ErrLockTimeout
}

func TestConversation_LockTimeoutIsTransient(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	dbtest.SeedUsers(t, db, "alice", "bob")

	conv := NewConversationService(repository.NewGormMessageRepository(db), repository.NewGormUserRepository(db),
		&recordingBroadcaster{}, &fakeArchiver{}, busyConversationLocker{})

	_, err := conv.AppendMessage(ctx, "alice", "bob", "hi")
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))

	err = conv.ClearConversation(ctx, "alice", "bob")
	assert.Equal(t, apperr.CodeTransient, apperr.CodeOf(err))
}

// gatedInbox parks ActiveConversations until release is closed, then
// fails if its context was cancelled meanwhile.
type gatedInbox struct {
	repository.MessageRepository
	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
}

func (r *gatedInbox) ActiveConversations(ctx context.Context, owner string) ([]repository.ConversationRow, error) {
	r.enterOnce.Do(func() { close(r.entered) })
	<-r.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.MessageRepository.ActiveConversations(ctx, owner)
}

func TestActiveConversations_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	db := dbtest.New(t)
	dbtest.SeedUsers(t, db, "alice", "bob")

	inner := repository.NewGormMessageRepository(db)
	gated := &gatedInbox{MessageRepository: inner, entered: make(chan struct{}), release: make(chan struct{})}
	conv := NewConversationService(gated, repository.NewGormUserRepository(db), &recordingBroadcaster{},
		&fakeArchiver{}, pairlock.NewLocalLocker(), WithClock(newStepClock().Now))

	_, err := conv.AppendMessage(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(context.Background())
	type result struct {
		inbox []domain.ConversationSummary
		err   error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		inbox, err := conv.ActiveConversations(firstCtx, "bob")
		first <- result{inbox, err}
	}()
	<-gated.entered

	go func() {
		inbox, err := conv.ActiveConversations(context.Background(), "bob")
		second <- result{inbox, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(gated.release)

	for _, ch := range []chan result{first, second} {
		r := <-ch
		require.NoError(t, r.err)
		require.Len(t, r.inbox, 1)
		assert.Equal(t, "alice", r.inbox[0].PeerID)
	}
}
