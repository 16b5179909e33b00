package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taskdeck-api/internal/observability/logger"
)

// RedisPublisher delivers events over redis pub/sub. Each channel maps to a
// redis channel of the same name; the realtime edge subscribes and relays to
// connected clients.
type RedisPublisher struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(client *redis.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

// publishTimeout bounds a single fan-out attempt once it is detached from
// the request.
const publishTimeout = 5 * time.Second

// Publish sends event to every channel. Failures are logged and dropped:
// delivery is at-most-once and a publish error never propagates to the
// mutation that triggered it. Delivery runs on its own goroutine with a
// detached, timeout-bounded context — the response never waits on redis.
func (p *RedisPublisher) Publish(ctx context.Context, channels []string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error(ctx, "failed to encode event",
			logger.Module("events"),
			logger.Action("publish"),
			zap.String("event", string(event.Type)),
			zap.Error(err),
		)
		return
	}

	// Keep the request's log fields but not its cancellation: the response
	// is written before delivery finishes.
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, publishTimeout)
		defer cancel()

		for _, channel := range channels {
			if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
				p.log.Warn(ctx, "event delivery failed",
					logger.Module("events"),
					logger.Action("publish"),
					zap.String("event", string(event.Type)),
					zap.String("channel", channel),
					zap.Error(err),
				)
			}
		}
	}()
}
