package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestConversationChannel(t *testing.T) {
	ch := ConversationChannel("dm:a:b")
	assert.Equal(t, "chat:conversation:dm:a:b", ch)

	key, ok := ChannelKeyFromConversation(ch)
	assert.True(t, ok)
	assert.Equal(t, "dm:a:b", key)

	_, ok = ChannelKeyFromConversation("other:thing")
	assert.False(t, ok)
}

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey("chat:conversation:dm:a:b")
	require.NoError(t, err)
	assert.Equal(t, "chat-conversation", topic)
	assert.Equal(t, "dm:a:b", key)

	topic, err = patternToTopic(ConversationPattern)
	require.NoError(t, err)
	assert.Equal(t, "chat-conversation", topic)

	_, _, err = channelToTopicAndKey("bad")
	assert.Error(t, err)
}

func TestMemoryPubSub_PatternDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ps := NewMemoryPubSub()
	defer ps.Close()

	ch, err := ps.SubscribePattern(ctx, ConversationPattern)
	require.NoError(t, err)

	ev, err := NewEvent(EventChatMessage, "", map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, ConversationChannel("dm:a:b"), ev))
	require.NoError(t, ps.Publish(ctx, "presence:x", ev))

	got := receive(t, ch)
	assert.Equal(t, "chat:conversation:dm:a:b", got.Channel)

	var payload map[string]string
	require.NoError(t, got.UnmarshalPayload(&payload))
	assert.Equal(t, "hi", payload["content"])

	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}
}

func TestMemoryPubSub_UnsubscribeClosesChannel(t *testing.T) {
	ctx := context.Background()
	ps := NewMemoryPubSub()

	ch, err := ps.Subscribe(ctx, "chat:conversation:dm:a:b")
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, "chat:conversation:dm:a:b"))

	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, ps.Close())
	ev, _ := NewEvent(EventChatMessage, "", nil)
	assert.ErrorIs(t, ps.Publish(ctx, "chat:conversation:dm:a:b", ev), ErrClosed)
}

func TestRedisPubSub_PatternDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ps := NewRedisPubSubFromClient(client)
	defer ps.Close()

	ch, err := ps.SubscribePattern(ctx, ConversationPattern)
	require.NoError(t, err)

	ev, err := NewEvent(EventChatMessage, ConversationChannel("dm:a:b"), map[string]string{"id": "m1"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, ConversationChannel("dm:a:b"), ev))

	got := receive(t, ch)
	assert.Equal(t, EventChatMessage, got.Type)
	assert.Equal(t, "chat:conversation:dm:a:b", got.Channel)
}
