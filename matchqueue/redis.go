package matchqueue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// queueKey is the single well-known key under which the matchmaking queue
// lives in the coordination store.
const queueKey = "pongarena:matchqueue"

// pairPopScript atomically pops the two oldest entries from the list, or
// leaves the list untouched and returns an empty array if fewer than two
// are present. Implemented server-side so concurrent instances can never
// both pop the same player.
var pairPopScript = redis.NewScript(`
local key = KEYS[1]
local len = redis.call("LLEN", key)
if len < 2 then
	return {}
end
local a = redis.call("LPOP", key)
local b = redis.call("LPOP", key)
return {a, b}
`)

// RedisQueue is the Queue implementation backed by a shared Redis instance,
// the coordination store used for cross-instance matchmaking and health.
type RedisQueue struct {
	client *redis.Client
}

// NewRedis wraps an existing go-redis client.
func NewRedis(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, playerID string) error {
	return q.client.RPush(ctx, queueKey, playerID).Err()
}

func (q *RedisQueue) Remove(ctx context.Context, playerID string) error {
	return q.client.LRem(ctx, queueKey, 0, playerID).Err()
}

func (q *RedisQueue) PairPop(ctx context.Context) (a, b string, ok bool, err error) {
	res, err := pairPopScript.Run(ctx, q.client, []string{queueKey}).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	if len(res) < 2 {
		return "", "", false, nil
	}
	a, _ = res[0].(string)
	b, _ = res[1].(string)
	return a, b, true, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, queueKey).Result()
	return int(n), err
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
