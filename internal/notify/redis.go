package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrEmptyHandle = errors.New("owner handle is required")

// Publisher is the subset of redis.Cmdable used to publish events.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes outcome events on a Redis pub/sub channel consumed by the chat bot.
type RedisNotifier struct {
	client  Publisher
	channel string
	now     func() time.Time
}

func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, now: time.Now}
}

func (n *RedisNotifier) NotifyTransferOutcome(ctx context.Context, ownerHandle string, transferID int64, status, reason string) error {
	return n.publish(ctx, Event{
		Kind:        KindTransferOutcome,
		OwnerHandle: ownerHandle,
		TransferID:  transferID,
		Status:      status,
		Detail:      reason,
	})
}

func (n *RedisNotifier) NotifyBalanceOutcome(ctx context.Context, ownerHandle, status, detail string) error {
	return n.publish(ctx, Event{
		Kind:        KindBalanceOutcome,
		OwnerHandle: ownerHandle,
		Status:      status,
		Detail:      detail,
	})
}

func (n *RedisNotifier) publish(ctx context.Context, ev Event) error {
	if ev.OwnerHandle == "" {
		return ErrEmptyHandle
	}
	ev.OccurredAt = n.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}
