package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"contactdesk/internal/domain/event"

	"github.com/redis/go-redis/v9"
)

// RedisTransport broadcasts events over a Redis Pub/Sub channel. This is the
// primary transport; it reaches every session subscribed to the same channel,
// including the publisher, so the bus's origin filter does the suppression.
type RedisTransport struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
}

func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{client: client, channel: channel}
}

func (t *RedisTransport) Publish(ctx context.Context, data []byte) error {
	if err := t.client.Publish(ctx, t.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", t.channel, err)
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, fn func(data []byte)) error {
	t.pubsub = t.client.Subscribe(ctx, t.channel)

	// Force the subscription onto the wire before returning, so events
	// published right after New are not missed.
	if _, err := t.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", t.channel, err)
	}

	ch := t.pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	if t.pubsub != nil {
		return t.pubsub.Close()
	}
	return nil
}

// RedisLastStore persists the last event per type in a Redis hash, shared by
// every session on the channel.
type RedisLastStore struct {
	client *redis.Client
	key    string
}

func NewRedisLastStore(client *redis.Client, channel string) *RedisLastStore {
	return &RedisLastStore{client: client, key: channel + ":last"}
}

func (s *RedisLastStore) Save(ctx context.Context, evt event.Envelope) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal last event: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, evt.Type, data).Err(); err != nil {
		return fmt.Errorf("save last event: %w", err)
	}
	return nil
}

func (s *RedisLastStore) LoadLastFor(ctx context.Context, evtType string) (event.Envelope, bool, error) {
	data, err := s.client.HGet(ctx, s.key, evtType).Bytes()
	if err == redis.Nil {
		return event.Envelope{}, false, nil
	}
	if err != nil {
		return event.Envelope{}, false, fmt.Errorf("load last event: %w", err)
	}
	var evt event.Envelope
	if err := json.Unmarshal(data, &evt); err != nil {
		slog.Warn("bus: discarding corrupt last event", "type", evtType, "error", err)
		return event.Envelope{}, false, nil
	}
	return evt, true, nil
}
