// Package events moves domain events between instances: session changes over
// Redis pub/sub and submitted custom orders over AMQP.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adstudio/backend/internal/auth"
)

// DefaultSessionChannel is the Redis channel session events travel on.
const DefaultSessionChannel = "adstudio:sessions"

// SessionBridge mirrors session events between the local hub and every other
// instance subscribed to the same Redis channel.
type SessionBridge struct {
	hub     *auth.Hub
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
	timeout time.Duration

	mu          sync.Mutex
	pubsub      *redis.PubSub
	unsubscribe func()
	done        chan struct{}
}

// NewSessionBridge connects hub to channel. Start must be called before any
// events flow.
func NewSessionBridge(hub *auth.Hub, client redis.UniversalClient, channel string, logger *slog.Logger) *SessionBridge {
	if channel == "" {
		channel = DefaultSessionChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionBridge{
		hub:     hub,
		client:  client,
		channel: channel,
		logger:  logger.With("component", "session_bridge"),
		timeout: 2 * time.Second,
	}
}

// Start subscribes to the Redis channel and begins forwarding events in
// both directions.
func (b *SessionBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return errors.New("session bridge already started")
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	b.pubsub = pubsub
	b.done = make(chan struct{})
	b.unsubscribe = b.hub.Subscribe(b.forward)

	go b.receive(pubsub.Channel(), b.done)
	return nil
}

// Close stops forwarding and releases the subscription.
func (b *SessionBridge) Close() error {
	b.mu.Lock()
	pubsub, done, unsubscribe := b.pubsub, b.done, b.unsubscribe
	b.pubsub, b.done, b.unsubscribe = nil, nil, nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	unsubscribe()
	err := pubsub.Close()
	<-done
	return err
}

// forward publishes events that originated on this instance.
func (b *SessionBridge) forward(event auth.Event) {
	if event.Origin != b.hub.ID() {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("encode session event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("publish session event", "type", event.Type, "account_id", event.AccountID, "error", err)
	}
}

func (b *SessionBridge) receive(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var event auth.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.logger.Warn("discarding malformed session event", "error", err)
			continue
		}
		if event.Origin == "" || event.Origin == b.hub.ID() {
			continue
		}
		b.hub.Publish(event)
	}
}
