// Package relay carries conversation events between instances. Services
// publish through the bus; every instance subscribes to all conversation
// channels and hands what it receives to its local hub.
package relay

import (
	"context"
	"time"

	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/hub"
	pkglog "github.com/poornimax/crushline/pkg/log"
	"github.com/poornimax/crushline/pkg/pubsub"
)

const reconnectDelay = 2 * time.Second

type Relay struct {
	bus    pubsub.PubSub
	hub    *hub.Hub
	ready  chan struct{}
	doneCh chan struct{}
}

func New(bus pubsub.PubSub, h *hub.Hub) *Relay {
	return &Relay{
		bus:    bus,
		hub:    h,
		ready:  make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Publish wraps event for the bus and sends it on the conversation's
// channel. Local subscribers receive it through Run like everyone else.
func (r *Relay) Publish(ctx context.Context, channelKey string, event interface{}) error {
	channel := pubsub.ConversationChannel(channelKey)
	evt, err := pubsub.NewEvent(eventType(event), channel, event)
	if err != nil {
		return err
	}
	return r.bus.Publish(ctx, channel, evt)
}

// Ready is closed once the first subscription is active.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// WaitReady blocks until the first subscription is active or ctx ends.
func (r *Relay) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed when Run() exits.
func (r *Relay) Done() <-chan struct{} { return r.doneCh }

// Run forwards bus events to the hub until ctx is done, resubscribing
// after the subscription ends unexpectedly.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.doneCh)
	l := pkglog.L()

	first := true
	for {
		events, err := r.bus.SubscribePattern(ctx, pubsub.ConversationPattern)
		if err == nil {
			if first {
				close(r.ready)
				first = false
			}
			r.forward(ctx, events)
		} else {
			l.Warn().Err(err).Msg("relay subscription failed")
		}

		if ctx.Err() != nil {
			return
		}
		l.Warn().Dur("retry_in", reconnectDelay).Msg("relay subscription ended, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (r *Relay) forward(ctx context.Context, events <-chan *pubsub.Event) {
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			key, ok := pubsub.ChannelKeyFromConversation(evt.Channel)
			if !ok {
				l.Warn().Str("channel", evt.Channel).Msg("relay: event on unknown channel")
				continue
			}
			if err := r.hub.PublishRaw(ctx, key, evt.Payload); err != nil {
				l.Error().Err(err).Str(pkglog.FieldChannelKey, key).Msg("relay: hub delivery failed")
			}
		}
	}
}

func eventType(event interface{}) string {
	switch e := event.(type) {
	case *domain.ChatMessageOut:
		return e.Type
	case *domain.ReadReceiptOut:
		return e.Type
	default:
		return "message"
	}
}
