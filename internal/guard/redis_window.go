package guard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"chatgate/internal/redis"
)

// RedisWindow keeps the sliding window in a redis sorted set per IP, scored
// by hit time in milliseconds. Useful when the limiter state should survive
// a restart.
type RedisWindow struct {
	client  *redis.Client
	ceiling int
	span    time.Duration
}

func NewRedisWindow(client *redis.Client, ceiling int, span time.Duration) *RedisWindow {
	return &RedisWindow{client: client, ceiling: ceiling, span: span}
}

func (w *RedisWindow) key(ip string) string {
	return "ratelimit:" + ip
}

func (w *RedisWindow) Admit(ctx context.Context, ip string, now time.Time) (int, bool, error) {
	count, err := w.prune(ctx, ip, now)
	if err != nil {
		return 0, false, err
	}
	if int(count) >= w.ceiling {
		return int(count), false, nil
	}
	member := strconv.FormatInt(now.UnixNano(), 10)
	pipe := w.client.Raw().TxPipeline()
	pipe.ZAdd(ctx, w.key(ip), goredis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.Expire(ctx, w.key(ip), w.span)
	if _, err := pipe.Exec(ctx); err != nil {
		return int(count), false, fmt.Errorf("record hit: %w", err)
	}
	return int(count) + 1, true, nil
}

func (w *RedisWindow) Count(ctx context.Context, ip string, now time.Time) (int, error) {
	count, err := w.prune(ctx, ip, now)
	return int(count), err
}

func (w *RedisWindow) prune(ctx context.Context, ip string, now time.Time) (int64, error) {
	cutoff := now.Add(-w.span).UnixMilli()
	pipe := w.client.Raw().TxPipeline()
	pipe.ZRemRangeByScore(ctx, w.key(ip), "0", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, w.key(ip))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("prune window: %w", err)
	}
	return card.Val(), nil
}
