package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow чистит устаревшие отметки и добавляет новую, только если окно не заполнено.
// KEYS[1] - ключ; ARGV: сейчас (мс), окно (мс), лимит, уникальный member.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter - скользящее окно в sorted set redis, общее для всех экземпляров сервиса.
// Отклонённые запросы в окно не попадают.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
	member func() string
}

// NewRedisLimiter пропускает не больше limit запросов за window на ключ.
func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit:",
		now:    time.Now,
		member: uuid.NewString,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = l.prefix + key
	allowed, err := slidingWindow.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, l.member()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return allowed == 1, nil
}
