package pubsub

import (
	"context"
	"errors"
	"path"
	"sync"

	pkglog "github.com/poornimax/crushline/pkg/log"
)

// ErrClosed is returned when using a closed MemoryPubSub.
var ErrClosed = errors.New("pubsub closed")

type memorySubscription struct {
	key     string
	pattern bool
	ch      chan *Event
	cancel  context.CancelFunc
}

// MemoryPubSub is an in-process PubSub for single-instance deployments
// and tests. Patterns use path.Match syntax, which agrees with the Redis
// glob for the "prefix:*" patterns used here.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string]*memorySubscription
	closed bool
}

// NewMemoryPubSub creates an empty in-process bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string]*memorySubscription)}
}

// Publish delivers event to every matching subscription without blocking.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if event.Channel == "" {
		event.Channel = channel
	}

	for _, sub := range m.subs {
		if !sub.matches(channel) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			logger := pkglog.Ctx(ctx)
			logger.Warn().Str("subscription", sub.key).Msg("subscriber buffer full, event dropped")
		}
	}
	return nil
}

// Subscribe subscribes to a specific channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false)
}

// SubscribePattern subscribes to channels matching pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.subscribe(ctx, pattern, true)
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if old, ok := m.subs[key]; ok {
		m.removeLocked(old)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, subscriberBuffer),
		cancel:  cancel,
	}
	m.subs[key] = sub

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		if cur, ok := m.subs[key]; ok && cur == sub {
			m.removeLocked(sub)
		}
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

// Unsubscribe removes a channel or pattern subscription.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[channel]; ok {
		m.removeLocked(sub)
	}
	return nil
}

// Close drops every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		m.removeLocked(sub)
	}
	m.closed = true
	return nil
}

func (m *MemoryPubSub) removeLocked(sub *memorySubscription) {
	delete(m.subs, sub.key)
	sub.cancel()
	close(sub.ch)
}

func (s *memorySubscription) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, _ := path.Match(s.key, channel)
	return ok
}
