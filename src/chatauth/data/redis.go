package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ProvisioningStream = "chatauth.provisioning"
	streamMaxLen       = 10000
	rateLimitPrefix    = "ratelimit:ip:"
)

// NewRedis parses url and pings the server.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// PublishEvent appends payload to a capped stream.
func PublishEvent(ctx context.Context, rdb redis.Cmdable, stream string, payload map[string]any) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: payload,
	}).Result()
	return err
}

// CountRequest records one request for key in a sliding window and returns
// how many requests, including this one, fall inside it.
func CountRequest(ctx context.Context, rdb redis.Cmdable, key string, window time.Duration) (int64, error) {
	now := time.Now()
	member := fmt.Sprintf("%d", now.UnixNano())
	redisKey := rateLimitPrefix + key

	pipe := rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return count.Val(), nil
}
