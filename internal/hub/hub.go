// Package hub fans conversation events out to the websocket clients
// connected to this instance.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/poornimax/crushline/pkg/log"
)

type Hub struct {
	clients    map[string]*Client            // clientID -> client
	channels   map[string]map[string]*Client // channelKey -> clientID -> client
	unregister chan *Client
	broadcast  chan *channelMessage
	done       chan struct{}
	mu         sync.RWMutex
}

type channelMessage struct {
	key  string
	data []byte
}

func New() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		channels:   make(map[string]map[string]*Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *channelMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run serializes removal and delivery until ctx is cancelled, then
// closes every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.channels = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for key, subs := range h.channels {
					delete(subs, client.ID)
					if len(subs) == 0 {
						delete(h.channels, key)
					}
				}
				delete(h.clients, client.ID)
				client.close()
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.channels[msg.key] {
				select {
				case client.Send <- msg.data:
				default:
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register makes client eligible for Subscribe. A client registered after
// the hub stopped is closed immediately.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		client.close()
		return
	default:
	}
	h.clients[client.ID] = client
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe adds a registered client to a channel.
func (h *Hub) Subscribe(key string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.channels[key]; !ok {
		h.channels[key] = make(map[string]*Client)
	}
	h.channels[key][client.ID] = client
	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldChannelKey, key).Msg("client subscribed")
}

func (h *Hub) Unsubscribe(key string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.channels[key]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.channels, key)
		}
	}
	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldChannelKey, key).Msg("client unsubscribed")
}

// Publish encodes v as JSON and delivers it to every subscriber of key.
func (h *Hub) Publish(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.PublishRaw(ctx, key, data)
}

// PublishRaw delivers already encoded bytes to every subscriber of key.
func (h *Hub) PublishRaw(ctx context.Context, key string, data []byte) error {
	select {
	case h.broadcast <- &channelMessage{key: key, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrStopped
	}
}

func (h *Hub) SubscriberCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[key])
}
