package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chat/internal/models"
)

// PresenceChannel carries session lifecycle events for external consumers
// (dashboards, moderation tooling). The in-memory registry is the single
// source of truth; this channel is a feed, not shared state.
const PresenceChannel = "chat:presence"

// Publisher emits session lifecycle events.
type Publisher interface {
	PublishPresence(ctx context.Context, event models.PresenceEvent) error
}

// RedisPublisher publishes presence events on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb        *redis.Client
	instanceID string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		rdb:        rdb,
		instanceID: uuid.New().String(),
	}
}

func (p *RedisPublisher) PublishPresence(ctx context.Context, event models.PresenceEvent) error {
	event.ID = uuid.New().String()
	event.InstanceID = p.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}
	return p.rdb.Publish(ctx, PresenceChannel, data).Err()
}
