// internal/notify/redis.go
package notify

import (
	"context"
	"encoding/json"

	"devmatch-workers/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes events as JSON on a pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) AnalysisFinished(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	err = n.client.Publish(ctx, n.channel, payload).Err()
	record("redis", err)
	if err != nil {
		return errors.NewNotificationSendFailedError("redis", err)
	}
	return nil
}
