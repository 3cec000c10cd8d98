package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/providers"
	redisclient "github.com/labtrack/lims/internal/infrastructure/clients/redis"
	"github.com/labtrack/lims/internal/infrastructure/observability"
)

// RedisEventBus implements the EventBus interface using Redis Pub/Sub.
// Each API replica holds one Redis subscription per channel and fans it out to local mailboxes.
type RedisEventBus struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[*mailbox]struct{}
	mu            sync.RWMutex
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[*mailbox]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish publishes an entry to all subscribers on every replica
func (b *RedisEventBus) Publish(ctx context.Context, channel string, entry *entities.AuditLogEntry) error {
	if b.ctx.Err() != nil {
		return errBusClosed
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("channel", channel).
		Str("audit_id", entry.ID).
		Msg("Published audit entry")
	return nil
}

// Subscribe subscribes to entries on a channel
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AuditLogEntry, error) {
	if b.ctx.Err() != nil {
		return nil, errBusClosed
	}

	b.mu.Lock()
	if _, exists := b.subscriptions[channel]; !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		// Wait for the subscription to be confirmed so nothing published after Subscribe returns is missed.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			b.mu.Unlock()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		b.subscriptions[channel] = pubsub
		b.wg.Add(1)
		go b.receiveMessages(channel, pubsub)
	}

	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[*mailbox]struct{})
	}
	box := &mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.subscribers[channel][box] = struct{}{}
	subscriberCount := len(b.subscribers[channel])
	b.wg.Add(1)
	b.mu.Unlock()

	observability.LoggerFromContext(ctx).Info().
		Str("channel", channel).
		Int("subscribers", subscriberCount).
		Msg("Subscribed to channel")

	out := make(chan *entities.AuditLogEntry)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer b.removeSubscriber(channel, box)
		box.drain(ctx, out)
	}()

	return out, nil
}

// receiveMessages receives messages from Redis and queues them for local subscribers
func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	defer b.wg.Done()
	logger := observability.GetLogger()

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var entry entities.AuditLogEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
				logger.Error().Err(err).Str("channel", channel).Msg("Failed to unmarshal audit entry")
				continue
			}

			b.mu.RLock()
			for box := range b.subscribers[channel] {
				e := entry
				box.push(&e)
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, box *mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[channel]
	if !exists {
		return
	}
	delete(subscribers, box)

	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
		if pubsub, ok := b.subscriptions[channel]; ok {
			_ = pubsub.Close()
			delete(b.subscriptions, channel)
			observability.GetLogger().Info().Str("channel", channel).Msg("Closed subscription to channel")
		}
	}
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	var errs []error
	b.mu.Lock()
	for _, boxes := range b.subscribers {
		for box := range boxes {
			box.stop()
		}
	}
	for channel, pubsub := range b.subscriptions {
		if err := pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close subscription %s: %w", channel, err))
		}
		delete(b.subscriptions, channel)
	}
	b.mu.Unlock()

	b.wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("errors closing event bus: %w", err)
	}
	observability.GetLogger().Info().Msg("Event bus closed")
	return nil
}
