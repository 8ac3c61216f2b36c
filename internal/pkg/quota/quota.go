// Package quota enforces the hourly creation quota for external report
// requests. The counter is the only shared mutable state between
// concurrent ingestion runs, so every check-and-increment is atomic:
// the Redis backend uses a Lua script, the in-process fallback a mutex.
//
// Callers see only TryAcquire; internal counters and window bookkeeping
// never leak.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrExhausted is wrapped by callers that turn a denied TryAcquire into
// an error, so every layer above can recognize quota exhaustion without
// knowing which subsystem hit it.
var ErrExhausted = errors.New("quota exhausted")

// Quota grants or denies one unit of the fixed-window budget.
type Quota interface {
	// TryAcquire consumes one unit if the current window has budget left.
	// Returns false (without error) when the quota is exhausted; the
	// caller surfaces that as a rate-limit condition, never a silent queue.
	TryAcquire(ctx context.Context) (bool, error)
}

// Lua script for atomic fixed-window check-and-increment. Checking before
// incrementing means a denied call never consumes budget.
const fixedWindowLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// RedisQuota is a fixed-window hourly quota shared across processes.
type RedisQuota struct {
	client *redis.Client
	name   string
	limit  int
	window time.Duration
	script *redis.Script
	now    func() time.Time
}

// NewRedisQuota creates an hourly quota named name with the given limit.
func NewRedisQuota(client *redis.Client, name string, limit int) *RedisQuota {
	return &RedisQuota{
		client: client,
		name:   name,
		limit:  limit,
		window: time.Hour,
		script: redis.NewScript(fixedWindowLuaScript),
		now:    time.Now,
	}
}

// TryAcquire consumes one unit of the current hour's budget.
func (q *RedisQuota) TryAcquire(ctx context.Context) (bool, error) {
	bucket := q.now().Unix() / int64(q.window/time.Second)
	key := fmt.Sprintf("quota:%s:%d", q.name, bucket)

	// TTL slightly over the window so the key outlives clock skew between
	// callers, then expires on its own.
	ttl := int(q.window/time.Second) + 60

	result, err := q.script.Run(ctx, q.client, []string{key}, q.limit, ttl).Slice()
	if err != nil {
		return false, fmt.Errorf("quota check failed: %w", err)
	}

	return result[0].(int64) == 1, nil
}

// MemoryQuota is the in-process fallback used when Redis is not
// configured. It provides the same fixed-window semantics for a single
// process deployment.
type MemoryQuota struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	used        int
	now         func() time.Time
}

// NewMemoryQuota creates an in-process hourly quota with the given limit.
func NewMemoryQuota(limit int) *MemoryQuota {
	return &MemoryQuota{
		limit:  limit,
		window: time.Hour,
		now:    time.Now,
	}
}

// TryAcquire consumes one unit of the current window's budget.
func (q *MemoryQuota) TryAcquire(_ context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if now.Sub(q.windowStart) >= q.window {
		q.windowStart = now.Truncate(q.window)
		q.used = 0
	}

	if q.used >= q.limit {
		return false, nil
	}
	q.used++
	return true, nil
}
