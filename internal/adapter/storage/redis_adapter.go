package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	quotaKeyPrefix       = "quota:"
	idempotencyKeyPrefix = "checkout:"
	idempotencyKeyTTL    = 24 * time.Hour
)

var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('EXPIRE', key, window)
end

if current > limit then
	return 0
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisAdapter(client *redis.Client, limit int, window time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, limit: limit, window: window}
}

// Allow consumes one unit of the caller's fixed-window quota. The INCR
// and EXPIRE run as one script so a crashed client cannot leave an
// immortal counter.
func (r *RedisAdapter) Allow(ctx context.Context, callerID string) (bool, error) {
	key := quotaKeyPrefix + callerID

	result, err := fixedWindowScript.Run(ctx, r.client, []string{key},
		r.limit, int(r.window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
