package service

import (
	"context"
	"sync"
	"time"

	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/events"
)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{
		next: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		step: time.Millisecond,
	}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

type recordingProducer struct {
	mu     sync.Mutex
	events []events.RelationshipEvent
}

func (p *recordingProducer) Produce(_ context.Context, evt *events.RelationshipEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *evt)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type published struct {
	key   string
	event interface{}
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *recordingBroadcaster) Publish(_ context.Context, key string, event interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, published{key: key, event: event})
	return b.err
}

func (b *recordingBroadcaster) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.sent...)
}

type fakeArchiver struct {
	mu    sync.Mutex
	calls [][]domain.Message
	err   error
}

func (a *fakeArchiver) Archive(_ context.Context, _, _ string, msgs []domain.Message, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.calls = append(a.calls, msgs)
	return nil
}
