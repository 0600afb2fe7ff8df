package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/data"
)

// RedisStreamSink appends failures to a Redis stream so a reconciliation
// worker can replay them.
type RedisStreamSink struct {
	rdb    redis.Cmdable
	stream string
}

func NewRedisStreamSink(rdb redis.Cmdable) *RedisStreamSink {
	return &RedisStreamSink{rdb: rdb, stream: data.ProvisioningStream}
}

func (r *RedisStreamSink) Notify(ctx context.Context, ev Event) error {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	err := data.PublishEvent(ctx, r.rdb, r.stream, map[string]any{
		"pubkey":     ev.PubKey,
		"realm":      ev.Realm,
		"step":       ev.Step,
		"error":      ev.Error,
		"request_id": ev.RequestID,
		"time":       ts.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("redis stream %s: %w", r.stream, err)
	}
	return nil
}
