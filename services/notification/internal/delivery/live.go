package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"herald/services/notification/internal/entity"

	"github.com/redis/go-redis/v9"
)

const (
	recentLimit = 100
	recentTTL   = 30 * 24 * time.Hour
)

// ChannelName is the pub/sub channel and recent-list key for a user.
func ChannelName(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// LiveMessage is what websocket subscribers receive.
type LiveMessage struct {
	UserID       string              `json:"user_id"`
	Notification entity.Notification `json:"notification"`
	DeliveredAt  time.Time           `json:"delivered_at"`
}

// RedisPublisher pushes notifications to a capped per-user list and
// publishes them on the user's channel.
type RedisPublisher struct {
	redisClient *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redisClient: redisClient}
}

func (p *RedisPublisher) Deliver(ctx context.Context, userID string, n entity.Notification) error {
	msg, err := json.Marshal(LiveMessage{UserID: userID, Notification: n, DeliveredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal live notification: %w", err)
	}

	key := ChannelName(userID)
	pipe := p.redisClient.TxPipeline()
	pipe.LPush(ctx, key, msg)
	pipe.LTrim(ctx, key, 0, recentLimit-1)
	pipe.Expire(ctx, key, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store live notification for %s: %w", userID, err)
	}

	if err := p.redisClient.Publish(ctx, key, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish live notification to %s: %w", key, err)
	}
	return nil
}
