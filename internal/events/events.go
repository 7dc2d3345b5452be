// Package events produces relationship events for the notification
// collaborator.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeCrushMutual    = "crush.mutual"
	TypeCrushWithdrawn = "crush.withdrawn"
)

// RelationshipEvent is the payload written to the events topic.
type RelationshipEvent struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actor_id"`
	PeerID     string    `json:"peer_id"`
	PairKey    string    `json:"pair_key"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Producer publishes relationship events.
type Producer interface {
	Produce(ctx context.Context, evt *RelationshipEvent) error
	Close() error
}

// NoopProducer drops every event. It is used when no brokers are configured.
type NoopProducer struct{}

func (NoopProducer) Produce(context.Context, *RelationshipEvent) error { return nil }

func (NoopProducer) Close() error { return nil }

var _ Producer = NoopProducer{}
